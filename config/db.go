package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens the database selected by c.Driver (mysql, postgres, sqlite).
func NewDB(c DB, debug bool) (*gorm.DB, error) {
	dialector, err := dialectorFor(c)
	if err != nil {
		return nil, err
	}

	logMode := logger.Warn
	if debug {
		logMode = logger.Info
	}
	if os.Getenv("GORM_LOG") == "off" {
		logMode = logger.Silent
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Use log.Logger for Printf support
		logger.Config{
			SlowThreshold: time.Second, // Slow SQL threshold
			LogLevel:      logMode,     // Log level
			Colorful:      true,        // Enable color
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.Driver == "sqlite" {
		// one writer; concurrent transactions would otherwise hit SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA busy_timeout=5000")
		db.Exec("PRAGMA foreign_keys=ON")
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

func dialectorFor(c DB) (gorm.Dialector, error) {
	switch c.Driver {
	case "mysql":
		dsn := c.DSN
		if dsn == "" {
			user := os.Getenv("MYSQL_USER")
			pass := os.Getenv("MYSQL_PASS")
			host := os.Getenv("MYSQL_HOST")
			port := GetEnv("MYSQL_PORT", "3306")
			db := os.Getenv("MYSQL_DB")
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=Local", user, pass, host, port, db)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		// "host=localhost user=solar password=solar dbname=solarcycle port=5432 sslmode=disable"
		if c.DSN == "" {
			return nil, fmt.Errorf("db.dsn is required for postgres")
		}
		return postgres.Open(c.DSN), nil
	case "sqlite", "":
		dsn := c.DSN
		if dsn == "" {
			dsn = "solarcycle.db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", c.Driver)
	}
}

package config

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds global application configuration
var AppConfig *Config
var once sync.Once

type Config struct {
	App    App    `mapstructure:"app"`
	DB     DB     `mapstructure:"db"`
	Redis  Redis  `mapstructure:"redis"`
	Kafka  Kafka  `mapstructure:"kafka"`
	Ledger Ledger `mapstructure:"ledger"`
	Triage Triage `mapstructure:"triage"`
	Cron   Cron   `mapstructure:"cron"`
	API    API    `mapstructure:"api"`
}

type App struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Port  string `mapstructure:"port"`
	Debug bool   `mapstructure:"debug"`
}

type DB struct {
	Driver string `mapstructure:"driver"` // mysql, postgres or sqlite
	DSN    string `mapstructure:"dsn"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"pass"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Ledger struct {
	Driver              string        `mapstructure:"driver"` // evm, memory or noop
	RPCURL              string        `mapstructure:"rpc_url"`
	PrivateKey          string        `mapstructure:"private_key"`
	TraceContract       string        `mapstructure:"trace_contract"`
	CollectibleContract string        `mapstructure:"collectible_contract"`
	MaterialContract    string        `mapstructure:"material_contract"`
	Treasury            string        `mapstructure:"treasury"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	RetryBase           time.Duration `mapstructure:"retry_base"`
	RetryMax            time.Duration `mapstructure:"retry_max"`
	TxTimeout           time.Duration `mapstructure:"tx_timeout"`
	TokensPerKg         int64         `mapstructure:"tokens_per_kg"`
}

type Triage struct {
	Strategy      string  `mapstructure:"strategy"` // threshold or rotation
	ReuseMinWatts float64 `mapstructure:"reuse_min_watts"`
}

type Cron struct {
	Outbox    string `mapstructure:"outbox"`
	Reconcile string `mapstructure:"reconcile"`
	Orders    string `mapstructure:"orders"`
}

type API struct {
	AuthType string `mapstructure:"auth_type"` // basic or key
	User     string `mapstructure:"user"`
	Pass     string `mapstructure:"pass"`
	Key      string `mapstructure:"key"`
}

// Load reads config.yaml (optional) and the environment into a Config.
// Keys map to env vars by section, e.g. ledger.rpc_url is LEDGER_RPC_URL.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	// AutomaticEnv yields a single string for list keys
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	return &cfg, nil
}

// LoadAppConfig initializes the global AppConfig variable
func LoadAppConfig() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		AppConfig = cfg
	})
	return AppConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "solarcycle")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.debug", false)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.pass", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "panel-lifecycle")

	v.SetDefault("ledger.driver", "noop")
	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.private_key", "")
	v.SetDefault("ledger.trace_contract", "")
	v.SetDefault("ledger.collectible_contract", "")
	v.SetDefault("ledger.material_contract", "")
	v.SetDefault("ledger.treasury", "")
	v.SetDefault("ledger.max_attempts", 8)
	v.SetDefault("ledger.retry_base", 5*time.Second)
	v.SetDefault("ledger.retry_max", 10*time.Minute)
	v.SetDefault("ledger.tx_timeout", 2*time.Minute)
	v.SetDefault("ledger.tokens_per_kg", 10)

	v.SetDefault("triage.strategy", "threshold")
	v.SetDefault("triage.reuse_min_watts", 150.0)

	v.SetDefault("cron.outbox", "@every 30s")
	v.SetDefault("cron.reconcile", "@hourly")
	v.SetDefault("cron.orders", "@every 10m")

	v.SetDefault("api.auth_type", "basic")
	v.SetDefault("api.user", "")
	v.SetDefault("api.pass", "")
	v.SetDefault("api.key", "")
}

// bindLegacyEnv keeps the flat variable names used by deployment scripts.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("app.port", "PORT")
	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("app.name", "APP_NAME")
	_ = v.BindEnv("app.debug", "DEBUG")
	_ = v.BindEnv("api.auth_type", "AUTH_TYPE")
}

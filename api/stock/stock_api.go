package stock

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"solarcycle.GO/api"
	"solarcycle.GO/core/app"
	"solarcycle.GO/core/errno"
)

func init() {
	api.RegisterModule(RegisterStockRoutes)
}

func RegisterStockRoutes(apiGroup *echo.Group, a *app.App) {
	// GET /api/stock – current material stock, public
	apiGroup.GET("/stock", func(c echo.Context) error {
		stock, err := a.Recovery.Stock(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"materials": stock})
	})

	// GET /api/recycle-records?limit=50
	apiGroup.GET("/recycle-records", func(c echo.Context) error {
		limit := 0
		if v := c.QueryParam("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return errno.ErrValidation.With("invalid limit %q", v)
			}
			limit = n
		}
		records, err := a.Recovery.Records(c.Request().Context(), limit)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"records": records})
	})
}

package sales

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"solarcycle.GO/api"
	"solarcycle.GO/core/app"
	"solarcycle.GO/service/settlement"
)

func init() {
	api.RegisterModule(RegisterSalesRoutes)
}

func RegisterSalesRoutes(apiGroup *echo.Group, a *app.App) {
	g := apiGroup.Group("/sales")

	g.POST("/panels", func(c echo.Context) error {
		var in settlement.PanelPurchase
		if err := api.Bind(c, &in); err != nil {
			return err
		}
		order, err := a.Settlement.PurchasePanel(c.Request().Context(), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, order)
	})

	g.POST("/art", func(c echo.Context) error {
		var in settlement.ArtPurchase
		if err := api.Bind(c, &in); err != nil {
			return err
		}
		order, err := a.Settlement.PurchaseArt(c.Request().Context(), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, order)
	})

	g.POST("/materials", func(c echo.Context) error {
		var in settlement.MaterialPurchase
		if err := api.Bind(c, &in); err != nil {
			return err
		}
		order, err := a.Settlement.PurchaseMaterial(c.Request().Context(), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, order)
	})
}

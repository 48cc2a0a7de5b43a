package asset

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"solarcycle.GO/api"
	"solarcycle.GO/core/app"
	"solarcycle.GO/core/errno"
	assetService "solarcycle.GO/service/asset"
	"solarcycle.GO/service/material"
)

func init() {
	api.RegisterModule(RegisterAssetRoutes)
}

type handler struct {
	app *app.App
}

func RegisterAssetRoutes(apiGroup *echo.Group, a *app.App) {
	h := &handler{app: a}
	g := apiGroup.Group("/assets")

	g.GET("", h.lookup)
	g.POST("/scan", h.scan)
	g.GET("/:id", h.get)
	g.GET("/:id/history", h.history)
	g.POST("/:id/warehouse", h.receive)
	g.POST("/:id/inspection/begin", h.beginInspection)
	g.POST("/:id/inspection", h.completeInspection)
	g.POST("/:id/refurbishment/start", h.startRefurbishment)
	g.POST("/:id/refurbishment", h.completeRefurbishment)
	g.POST("/:id/recycle", h.recycle)
	g.POST("/:id/art", h.publishArt)
	g.POST("/:id/tokenize", h.tokenize)

	apiGroup.GET("/triage/stats", h.triageStats)
}

// GET /api/assets?identifier=NFC-or-QR
func (h *handler) lookup(c echo.Context) error {
	identifier := c.QueryParam("identifier")
	if identifier == "" {
		return errno.ErrMissingID
	}
	a, err := h.app.Assets.FindByIdentifier(c.Request().Context(), identifier)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *handler) scan(c echo.Context) error {
	var in assetService.ScanInput
	if err := api.Bind(c, &in); err != nil {
		return err
	}
	a, created, err := h.app.Assets.ScanOrCreate(c.Request().Context(), in)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"asset": a, "created": created})
}

func (h *handler) get(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.app.Assets.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *handler) history(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	report, err := h.app.Assets.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (h *handler) receive(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		Location string `json:"location"`
	}
	if err := api.Bind(c, &body); err != nil {
		return err
	}
	a, err := h.app.Assets.ReceiveAtWarehouse(c.Request().Context(), id, body.Location)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *handler) beginInspection(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		InspectorID *uint `json:"inspectorId"`
	}
	if err := api.Bind(c, &body); err != nil {
		return err
	}
	a, err := h.app.Assets.BeginInspection(c.Request().Context(), id, body.InspectorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *handler) completeInspection(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in assetService.CompleteInspectionInput
	if err := api.Bind(c, &in); err != nil {
		return err
	}
	in.AssetID = id
	ins, a, err := h.app.Assets.CompleteInspection(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"inspection": ins, "asset": a})
}

func (h *handler) startRefurbishment(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		TechnicianID *uint `json:"technicianId"`
	}
	if err := api.Bind(c, &body); err != nil {
		return err
	}
	a, err := h.app.Assets.StartRefurbishment(c.Request().Context(), id, body.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *handler) completeRefurbishment(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in assetService.RefurbishInput
	if err := api.Bind(c, &in); err != nil {
		return err
	}
	in.AssetID = id
	a, err := h.app.Assets.CompleteRefurbishment(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *handler) recycle(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in material.RecycleInput
	if err := api.Bind(c, &in); err != nil {
		return err
	}
	in.AssetID = id
	rec, err := h.app.Recovery.Recycle(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *handler) publishArt(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var in assetService.PublishArtInput
	if err := api.Bind(c, &in); err != nil {
		return err
	}
	in.AssetID = id
	piece, err := h.app.Assets.PublishArt(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, piece)
}

func (h *handler) tokenize(c echo.Context) error {
	id, err := api.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body struct {
		MetadataURI string `json:"metadataUri" validate:"omitempty,max=512"`
	}
	if err := api.Bind(c, &body); err != nil {
		return err
	}
	a, err := h.app.Settlement.TokenizePanel(c.Request().Context(), id, body.MetadataURI)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *handler) triageStats(c echo.Context) error {
	stats, err := h.app.Assets.TriageStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

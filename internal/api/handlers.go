package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"dashboard/internal/export"
	"dashboard/internal/models"
	"dashboard/internal/service"
)

// DashboardService is what the handlers need from the service layer.
type DashboardService interface {
	Options() (models.Options, error)
	Evaluate(ctx context.Context, endpoint string, sel models.FilterSelection) (*models.DashboardView, error)
	Export(ctx context.Context, sel models.FilterSelection) ([]models.LongRecord, error)
	Status() service.Status
}

type Handler struct {
	svc DashboardService
}

func NewHandler(svc DashboardService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	api := e.Group("/api")
	api.GET("/options", h.GetOptions)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/series", h.GetSeries)
	api.GET("/metrics", h.GetMetrics)
	api.GET("/export", h.Export)
}

// --- HANDLERS ---

// selectionParams reads ?from=&to=&id=A&id=B. Missing years default to the
// dataset bounds.
func (h *Handler) selectionParams(c echo.Context) (models.FilterSelection, error) {
	opts, err := h.svc.Options()
	if err != nil {
		return models.FilterSelection{}, err
	}
	sel := models.FilterSelection{Years: opts.Bounds, Identifiers: c.QueryParams()["id"]}

	if sel.Years.Min, err = intParam(c, "from", opts.Bounds.Min); err != nil {
		return sel, err
	}
	if sel.Years.Max, err = intParam(c, "to", opts.Bounds.Max); err != nil {
		return sel, err
	}
	return sel, nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ErrInvalidParameter(name, raw)
	}
	return v, nil
}

func (h *Handler) Health(c echo.Context) error {
	st := h.svc.Status()
	if !st.Ready {
		return c.JSON(http.StatusServiceUnavailable, st)
	}
	return c.JSON(http.StatusOK, st)
}

// bounds, identifiers and the default selection for the controls
func (h *Handler) GetOptions(c echo.Context) error {
	opts, err := h.svc.Options()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, opts)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	view, err := h.evaluate(c, "dashboard")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

type seriesResponse struct {
	Selection models.FilterSelection `json:"selection"`
	Series    []models.Series        `json:"series"`
	Notice    string                 `json:"notice,omitempty"`
}

func (h *Handler) GetSeries(c echo.Context) error {
	view, err := h.evaluate(c, "series")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, seriesResponse{
		Selection: view.Selection,
		Series:    view.Series,
		Notice:    view.Notice,
	})
}

type metricsResponse struct {
	Year     int                   `json:"year"`
	Metrics  []models.MetricResult `json:"metrics"`
	Notice   string                `json:"notice,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

func (h *Handler) GetMetrics(c echo.Context) error {
	view, err := h.evaluate(c, "metrics")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, metricsResponse{
		Year:     view.MetricsYear,
		Metrics:  view.Metrics,
		Notice:   view.Notice,
		Warnings: view.Warnings,
	})
}

func (h *Handler) evaluate(c echo.Context, endpoint string) (*models.DashboardView, error) {
	sel, err := h.selectionParams(c)
	if err != nil {
		return nil, err
	}
	return h.svc.Evaluate(c.Request().Context(), endpoint, sel)
}

// filtered long rows as csv (default) or arrow
func (h *Handler) Export(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return ErrInvalidParameter("format", c.QueryParam("format"))
	}
	sel, err := h.selectionParams(c)
	if err != nil {
		return err
	}
	rows, err := h.svc.Export(c.Request().Context(), sel)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("dashboard-%d-%d%s", sel.Years.Min, sel.Years.Max, format.Extension())
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, format.ContentType())
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	res.WriteHeader(http.StatusOK)
	return export.Write(res, format, rows)
}

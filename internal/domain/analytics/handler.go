package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/analytics/dashboard", h.Dashboard)
}

func (h *Handler) Dashboard(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	d, err := h.svc.Dashboard(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

package hospital

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/policy"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the hospital endpoints. Registration is public;
// approval and lifecycle changes are super-admin only (enforced in the
// service, gated here for an early 403).
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/hospitals", h.Register)

	api.GET("/hospitals", h.List)
	api.GET("/hospitals/:id", h.Get)

	admin := api.Group("", auth.RequireRole(policy.RoleSuperAdmin))
	admin.POST("/hospitals/:id/approve", h.Approve)
	admin.POST("/hospitals/:id/reject", h.Reject)
	admin.POST("/hospitals/:id/suspend", h.Suspend)
	admin.POST("/hospitals/:id/reinstate", h.Reinstate)
	admin.DELETE("/hospitals/:id", h.Delete)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	var actor *policy.Actor
	if a, ok := auth.ActorFromContext(c.Request().Context()); ok {
		actor = &a
	}
	hosp, err := h.svc.Register(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, hosp)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid hospital id")
	}
	hosp, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{
		Status: Status(c.QueryParam("status")),
		Search: c.QueryParam("search"),
	}
	hospitals, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(hospitals, total, pg.Limit, pg.Offset))
}

func (h *Handler) Approve(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid hospital id")
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	hosp, err := h.svc.Approve(c.Request().Context(), actor, id, body.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) Reject(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid hospital id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	hosp, err := h.svc.Reject(c.Request().Context(), actor, id, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) Suspend(c echo.Context) error {
	return h.lifecycle(c, h.svc.Suspend)
}

func (h *Handler) Reinstate(c echo.Context) error {
	return h.lifecycle(c, h.svc.Reinstate)
}

func (h *Handler) lifecycle(c echo.Context, op func(ctx context.Context, actor policy.Actor, id uuid.UUID) (*Hospital, error)) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid hospital id")
	}
	hosp, err := op(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hosp)
}

func (h *Handler) Delete(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid hospital id")
	}
	cascade, _ := strconv.ParseBool(c.QueryParam("cascade"))
	if err := h.svc.Delete(c.Request().Context(), actor, id, cascade); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

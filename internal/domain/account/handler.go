package account

import (
	"net/http"

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

// RegisterRoutes wires the account endpoints. Registration is public;
// everything else requires an authenticated actor.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/accounts", h.Register)

	api.GET("/accounts", h.List)
	api.GET("/accounts/:id", h.Get)

	manage := api.Group("", auth.RequireRole(policy.RoleHospital))
	manage.POST("/accounts/:id/approve", h.Approve)
	manage.POST("/accounts/:id/reject", h.Reject)
	manage.PATCH("/accounts/:id/active", h.SetActive)
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	a, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid account id")
	}
	a, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	pg := pagination.FromContext(c)

	filter := ListFilter{
		Role:           policy.Role(c.QueryParam("role")),
		ApprovalStatus: policy.ApprovalStatus(c.QueryParam("approval_status")),
		Search:         c.QueryParam("search"),
	}
	if raw := c.QueryParam("hospital_id"); raw != "" {
		hid, err := uuid.Parse(raw)
		if err != nil {
			return apperror.InvalidArgument("invalid hospital_id")
		}
		filter.HospitalID = &hid
	}

	accounts, total, err := h.svc.List(c.Request().Context(), actor, filter, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(accounts, total, pg.Limit, pg.Offset))
}

func (h *Handler) Approve(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid account id")
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	a, err := h.svc.Approve(c.Request().Context(), actor, id, body.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Reject(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid account id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	a, err := h.svc.Reject(c.Request().Context(), actor, id, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) SetActive(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid account id")
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	if err := h.svc.SetActive(c.Request().Context(), actor, id, body.Active); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

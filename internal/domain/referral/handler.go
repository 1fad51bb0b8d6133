package referral

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperror"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/referrals", h.Create)
	api.GET("/referrals", h.List)
	api.GET("/referrals/number/:number", h.GetByNumber)
	api.GET("/referrals/:id", h.Get)
	api.PUT("/referrals/:id", h.Update)
	api.PATCH("/referrals/:id/status", h.SetStatus)
	api.POST("/referrals/:id/messages", h.AddMessage)
	api.GET("/referrals/:id/messages", h.ListMessages)
}

func (h *Handler) Create(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	ref, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ref)
}

func (h *Handler) Get(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid referral id")
	}
	ref, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ref)
}

func (h *Handler) GetByNumber(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	ref, err := h.svc.GetByNumber(c.Request().Context(), actor, c.Param("number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ref)
}

func (h *Handler) List(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	pg := pagination.FromContext(c)
	filter := ListFilter{
		Status:   Status(c.QueryParam("status")),
		Priority: Priority(c.QueryParam("priority")),
		Search:   c.QueryParam("search"),
	}
	refs, total, err := h.svc.List(c.Request().Context(), actor, filter, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(refs, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid referral id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	ref, err := h.svc.Update(c.Request().Context(), actor, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ref)
}

func (h *Handler) SetStatus(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid referral id")
	}
	var body struct {
		Status Status `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	ref, err := h.svc.SetStatus(c.Request().Context(), actor, id, body.Status, body.Notes)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ref)
}

func (h *Handler) AddMessage(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid referral id")
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&body); err != nil {
		return apperror.InvalidArgument("invalid request body")
	}
	m, err := h.svc.AddMessage(c.Request().Context(), actor, id, body.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMessages(c echo.Context) error {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.InvalidArgument("invalid referral id")
	}
	msgs, err := h.svc.ListMessages(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

type Handler struct {
	identity *Identity
	// exposeResetToken returns reset tokens in the response body. Only for
	// development, where no mail relay is configured.
	exposeResetToken bool
}

func NewHandler(identity *Identity, exposeResetToken bool) *Handler {
	return &Handler{identity: identity, exposeResetToken: exposeResetToken}
}

// RegisterPublicRoutes mounts the endpoints that run before a session
// exists.
func (h *Handler) RegisterPublicRoutes(api *echo.Group) {
	api.POST("/auth/signin", h.SignIn)
	api.POST("/auth/reset", h.ResetPassword)
	api.POST("/auth/reset/complete", h.CompleteReset)
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/auth/session", h.CurrentSession)

	adminGroup := api.Group("", RequireRole(RoleAdmin))
	adminGroup.POST("/accounts", h.CreateAccount)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sess, err := h.identity.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, err := h.identity.ResetPassword(c.Request().Context(), req.Email)
	if err != nil {
		return apperr.HTTP(err)
	}
	resp := map[string]string{"status": "sent"}
	if h.exposeResetToken && token != "" {
		resp["token"] = token
	}
	return c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) CompleteReset(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.identity.CompleteReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CurrentSession(c echo.Context) error {
	sess := SessionFromContext(c.Request().Context())
	if sess == nil {
		return apperr.HTTP(apperr.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) CreateAccount(c echo.Context) error {
	var req NewAccount
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.identity.CreateAccount(c.Request().Context(), req)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id, "email": normalizeEmail(req.Email)})
}

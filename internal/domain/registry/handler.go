package registry

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/export"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
)

type Handler struct {
	svc      *Service
	pageSize int
}

func NewHandler(svc *Service, pageSize int) *Handler {
	return &Handler{svc: svc, pageSize: pageSize}
}

// RegisterRoutes mounts every register under /registry/<name>.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	for _, k := range Kinds {
		g := api.Group("/registry/"+k.Name, auth.RequireRole(k.Roles...))
		g.GET("", h.List(k))
		g.POST("", h.Create(k))
		g.GET("/export", h.Export(k))
		g.GET("/:id", h.Get(k))
		g.PUT("/:id", h.Update(k))
		g.DELETE("/:id", h.Delete(k))
	}
	api.GET("/registry/appointments/attendants", h.Attendants, auth.RequireRole(Appointments.Roles...))
}

// List serves ?day=YYYY-MM-DD (default today, "all" for every day) on
// registers with a day view, plus the usual search and pagination.
func (h *Handler) List(k Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		q, err := listview.FromContext(c, h.pageSize)
		if err != nil {
			return apperr.HTTP(err)
		}
		p, err := h.svc.List(c.Request().Context(), k, c.QueryParam("day"), q)
		if err != nil {
			return apperr.HTTP(err)
		}
		extra := map[string]interface{}{}
		if p.Charges != nil {
			extra["total_charges"] = p.Charges
		}
		return c.JSON(http.StatusOK, p.Result.Response(extra))
	}
}

func (h *Handler) Create(k Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		in := map[string]interface{}{}
		if err := c.Bind(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		r, err := h.svc.Create(c.Request().Context(), k, in)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusCreated, r)
	}
}

func (h *Handler) Get(k Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		r, err := h.svc.Get(c.Request().Context(), k, c.Param("id"))
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

func (h *Handler) Update(k Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		in := map[string]interface{}{}
		if err := c.Bind(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		r, err := h.svc.Update(c.Request().Context(), k, c.Param("id"), in)
		if err != nil {
			return apperr.HTTP(err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

func (h *Handler) Delete(k Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := h.svc.Delete(c.Request().Context(), k, c.Param("id")); err != nil {
			return apperr.HTTP(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (h *Handler) Export(k Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		q, err := listview.FromContext(c, h.pageSize)
		if err != nil {
			return apperr.HTTP(err)
		}
		rows, err := h.svc.Export(c.Request().Context(), k, c.QueryParam("day"), q)
		if err != nil {
			return apperr.HTTP(err)
		}
		if len(rows) == 0 {
			return echo.NewHTTPError(http.StatusNotFound, "no data to export")
		}
		return export.Attachment(c, k.Name, k.Sheet, rows, time.Now())
	}
}

func (h *Handler) Attendants(c echo.Context) error {
	names, err := h.svc.Attendants(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, names)
}

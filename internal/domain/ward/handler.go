package ward

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
	"github.com/DBEST-EZRA/HMIS/internal/platform/auth"
	"github.com/DBEST-EZRA/HMIS/internal/platform/export"
	"github.com/DBEST-EZRA/HMIS/internal/platform/listview"
	"github.com/DBEST-EZRA/HMIS/pkg/pagination"
)

type Handler struct {
	svc      *Service
	pageSize int
}

func NewHandler(svc *Service, pageSize int) *Handler {
	return &Handler{svc: svc, pageSize: pageSize}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/ward", auth.RequireRole(auth.RoleClinician, auth.RoleEmergency))
	g.GET("/stays", h.ListStays)
	g.POST("/stays", h.Admit)
	g.GET("/stays/export", h.ExportStays)
	g.GET("/stays/:id", h.GetStay)
	g.PUT("/stays/:id", h.UpdateStay)
	g.DELETE("/stays/:id", h.DeleteStay)
	g.POST("/stays/:id/discharge", h.Discharge)

	// Ledger
	g.GET("/stays/:id/ledger", h.GetLedger)
	g.POST("/stays/:id/ledger", h.AppendEntry)
	g.PUT("/stays/:id/ledger", h.EditEntry)
	g.DELETE("/stays/:id/ledger", h.DeleteEntry)
}

func (h *Handler) ListStays(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	sp, err := h.svc.List(c.Request().Context(), q, c.QueryParam("admission_date"))
	if err != nil {
		return apperr.HTTP(err)
	}
	page := pagination.Page[StayView]{
		Items:       sp.Stays,
		Index:       sp.Result.Page.Index,
		Size:        sp.Result.Page.Size,
		TotalPages:  sp.Result.Page.TotalPages,
		Total:       sp.Result.Page.Total,
		HasNext:     sp.Result.Page.HasNext,
		HasPrevious: sp.Result.Page.HasPrevious,
	}
	meta := map[string]interface{}{
		"filter_key": sp.Result.FilterKey,
		"years":      sp.Result.Years,
		"total":      sp.Total,
	}
	if sp.Result.Reset {
		meta["page_reset"] = true
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, meta))
}

func (h *Handler) Admit(c echo.Context) error {
	var a Admission
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Admit(c.Request().Context(), a)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetStay(c echo.Context) error {
	v, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateStay(c echo.Context) error {
	var u StayUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Update(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteStay(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Discharge(c echo.Context) error {
	var body struct {
		DischargeDate string `json:"dischargeDate"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Discharge(c.Request().Context(), c.Param("id"), body.DischargeDate)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetLedger(c echo.Context) error {
	l, err := h.svc.Ledger(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) AppendEntry(c echo.Context) error {
	var req EntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := req.Parse()
	if err != nil {
		return apperr.HTTP(err)
	}
	l, err := h.svc.AppendEntry(c.Request().Context(), c.Param("id"), e)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) EditEntry(c echo.Context) error {
	var req EditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Old == nil || req.New == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "old and new entries are required")
	}
	old, err := DecodeEntry(req.Section, req.Old)
	if err != nil {
		return apperr.HTTP(err)
	}
	next, err := DecodeEntry(req.Section, req.New)
	if err != nil {
		return apperr.HTTP(err)
	}
	l, err := h.svc.EditEntry(c.Request().Context(), c.Param("id"), old, next)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteEntry(c echo.Context) error {
	var req EntryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Entry == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "entry is required")
	}
	e, err := DecodeEntry(req.Section, req.Entry)
	if err != nil {
		return apperr.HTTP(err)
	}
	l, err := h.svc.DeleteEntry(c.Request().Context(), c.Param("id"), e)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ExportStays(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	rows, err := h.svc.ExportRows(c.Request().Context(), q, c.QueryParam("admission_date"))
	if err != nil {
		return apperr.HTTP(err)
	}
	if len(rows) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no data to export")
	}
	return export.Attachment(c, "ward_records", "Ward Records", rows, time.Now())
}

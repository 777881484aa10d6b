package billing

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
	// Accounts desk
	g := api.Group("/billing", auth.RequireRole(auth.RoleAccounts))
	g.GET("/bills", h.ListBills)
	g.GET("/bills/export", h.ExportBills)
	g.GET("/bills/:id", h.GetBill)
	g.PUT("/bills/:id", h.UpdateCharges)
}

func (h *Handler) query(c echo.Context) (listview.Query, error) {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return q, err
	}
	return q.WithDefaultDate(h.svc.Today()), nil
}

func (h *Handler) ListBills(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	bp, err := h.svc.List(c.Request().Context(), q, c.QueryParam("status"))
	if err != nil {
		return apperr.HTTP(err)
	}
	page := pagination.Page[Bill]{
		Items:       bp.Bills,
		Index:       bp.Result.Page.Index,
		Size:        bp.Result.Page.Size,
		TotalPages:  bp.Result.Page.TotalPages,
		Total:       bp.Result.Page.Total,
		HasNext:     bp.Result.Page.HasNext,
		HasPrevious: bp.Result.Page.HasPrevious,
	}
	meta := map[string]interface{}{
		"filter_key": bp.Result.FilterKey,
		"years":      bp.Result.Years,
		"summary":    bp.Summary,
	}
	if bp.Result.Reset {
		meta["page_reset"] = true
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, meta))
}

func (h *Handler) GetBill(c echo.Context) error {
	b, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) UpdateCharges(c echo.Context) error {
	var u ChargeUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	b, err := h.svc.UpdateCharges(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ExportBills(c echo.Context) error {
	q, err := h.query(c)
	if err != nil {
		return apperr.HTTP(err)
	}
	rows, err := h.svc.ExportRows(c.Request().Context(), q, c.QueryParam("status"))
	if err != nil {
		return apperr.HTTP(err)
	}
	if len(rows) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no data to export")
	}
	return export.Attachment(c, "patients_export", "Patients", rows, time.Now())
}

package pharmacy

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
	g := api.Group("/pharmacy", auth.RequireRole(auth.RolePharmacy))

	// Inventory
	g.GET("/inventory", h.ListItems)
	g.POST("/inventory", h.CreateItem)
	g.GET("/inventory/low", h.LowStock)
	g.GET("/inventory/export", h.ExportItems)
	g.GET("/inventory/:id", h.GetItem)
	g.PUT("/inventory/:id", h.UpdateItem)
	g.DELETE("/inventory/:id", h.DeleteItem)

	// Sales
	g.GET("/sales", h.ListSales)
	g.POST("/sales", h.RecordSale)
	g.GET("/sales/:id", h.GetSale)
	g.PUT("/sales/:id", h.UpdateSale)
}

func (h *Handler) ListItems(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	ip, err := h.svc.ListItems(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTP(err)
	}
	page := pagination.Page[Item]{
		Items:       ip.Items,
		Index:       ip.Result.Page.Index,
		Size:        ip.Result.Page.Size,
		TotalPages:  ip.Result.Page.TotalPages,
		Total:       ip.Result.Page.Total,
		HasNext:     ip.Result.Page.HasNext,
		HasPrevious: ip.Result.Page.HasPrevious,
	}
	meta := map[string]interface{}{
		"filter_key": ip.Result.FilterKey,
		"low_stock":  ip.Low,
	}
	if ip.Result.Reset {
		meta["page_reset"] = true
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, meta))
}

func (h *Handler) CreateItem(c echo.Context) error {
	var in ItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it, err := h.svc.CreateItem(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *Handler) GetItem(c echo.Context) error {
	it, err := h.svc.GetItem(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) UpdateItem(c echo.Context) error {
	var u ItemUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	it, err := h.svc.UpdateItem(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, it)
}

func (h *Handler) DeleteItem(c echo.Context) error {
	if err := h.svc.DeleteItem(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) LowStock(c echo.Context) error {
	list, err := h.svc.LowStock(c.Request().Context())
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) ExportItems(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	rows, err := h.svc.ExportItems(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTP(err)
	}
	if len(rows) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no data to export")
	}
	return export.Attachment(c, "pharmacy_inventory", "Inventory", rows, time.Now())
}

func (h *Handler) ListSales(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	q = q.WithDefaultDate(h.svc.Today())
	sp, err := h.svc.ListSales(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTP(err)
	}
	page := pagination.Page[Sale]{
		Items:       sp.Sales,
		Index:       sp.Result.Page.Index,
		Size:        sp.Result.Page.Size,
		TotalPages:  sp.Result.Page.TotalPages,
		Total:       sp.Result.Page.Total,
		HasNext:     sp.Result.Page.HasNext,
		HasPrevious: sp.Result.Page.HasPrevious,
	}
	meta := map[string]interface{}{
		"filter_key": sp.Result.FilterKey,
		"revenue":    sp.Revenue,
	}
	if sp.Result.Reset {
		meta["page_reset"] = true
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, meta))
}

func (h *Handler) RecordSale(c echo.Context) error {
	var in SaleInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sl, err := h.svc.RecordSale(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, sl)
}

func (h *Handler) GetSale(c echo.Context) error {
	sl, err := h.svc.GetSale(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sl)
}

func (h *Handler) UpdateSale(c echo.Context) error {
	var u SaleUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sl, err := h.svc.UpdateSale(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, sl)
}

package patient

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
	reception := auth.RequireRole(auth.RoleReception)
	clinician := auth.RequireRole(auth.RoleClinician)
	anyDesk := auth.RequireRole(auth.RoleReception, auth.RoleClinician, auth.RoleLab, auth.RolePharmacy, auth.RoleAccounts)

	g := api.Group("/patients")
	g.POST("", h.Register, reception)
	g.GET("", h.ListPatients, anyDesk)
	g.GET("/export", h.ExportPatients, reception)
	g.GET("/assigned", h.ListAssigned, clinician)
	g.GET("/:id", h.GetPatient, anyDesk)
	g.DELETE("/:id", h.DeletePatient, auth.RequireRole(auth.RoleAdmin))

	// Desk updates
	g.PUT("/:id/clinical", h.UpdateClinical, clinician)
	g.PUT("/:id/lab", h.UpdateLab, auth.RequireRole(auth.RoleLab))
	g.PUT("/:id/pharmacy", h.UpdatePharmacy, auth.RequireRole(auth.RolePharmacy))
}

func respond(c echo.Context, p *Page) error {
	page := pagination.Page[View]{
		Items:       p.Patients,
		Index:       p.Result.Page.Index,
		Size:        p.Result.Page.Size,
		TotalPages:  p.Result.Page.TotalPages,
		Total:       p.Result.Page.Total,
		HasNext:     p.Result.Page.HasNext,
		HasPrevious: p.Result.Page.HasPrevious,
	}
	meta := map[string]interface{}{
		"filter_key": p.Result.FilterKey,
		"years":      p.Result.Years,
	}
	if p.Result.Reset {
		meta["page_reset"] = true
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, meta))
}

func (h *Handler) Register(c echo.Context) error {
	var reg Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Register(c.Request().Context(), reg)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListPatients(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	p, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTP(err)
	}
	return respond(c, p)
}

// ListAssigned serves the clinician queue, today by default. The assignee
// is the signed-in clinician unless given explicitly.
func (h *Handler) ListAssigned(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	q = q.WithDefaultDate(h.svc.Today())
	assignee := c.QueryParam("assignee")
	if assignee == "" {
		assignee = auth.NameFromContext(c.Request().Context())
	}
	p, err := h.svc.ListAssigned(c.Request().Context(), assignee, q)
	if err != nil {
		return apperr.HTTP(err)
	}
	return respond(c, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	v, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateClinical(c echo.Context) error {
	var u ClinicalUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateClinical(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateLab(c echo.Context) error {
	var u LabUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateLab(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdatePharmacy(c echo.Context) error {
	var u PharmacyUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdatePharmacy(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ExportPatients(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	rows, err := h.svc.ExportRows(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTP(err)
	}
	if len(rows) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no data to export")
	}
	return export.Attachment(c, "patients_export", "Patients", rows, time.Now())
}

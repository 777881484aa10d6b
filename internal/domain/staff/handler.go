package staff

import (
	"net/http"
	"strconv"
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
	g := api.Group("/staff", auth.RequireRole(auth.RoleAdmin))

	g.GET("/employees", h.ListEmployees)
	g.POST("/employees", h.CreateEmployee)
	g.GET("/employees/export", h.ExportEmployees)
	g.GET("/employees/:id", h.GetEmployee)
	g.PUT("/employees/:id", h.UpdateEmployee)
	g.DELETE("/employees/:id", h.DeleteEmployee)

	g.GET("/attendance", h.AttendanceDay)
	g.POST("/attendance", h.RecordAttendance)
	g.PUT("/attendance/:id", h.UpdateAttendance)
}

func (h *Handler) ListEmployees(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	ep, err := h.svc.ListEmployees(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTP(err)
	}
	page := pagination.Page[Employee]{
		Items:       ep.Employees,
		Index:       ep.Result.Page.Index,
		Size:        ep.Result.Page.Size,
		TotalPages:  ep.Result.Page.TotalPages,
		Total:       ep.Result.Page.Total,
		HasNext:     ep.Result.Page.HasNext,
		HasPrevious: ep.Result.Page.HasPrevious,
	}
	meta := map[string]interface{}{
		"filter_key": ep.Result.FilterKey,
		"years":      ep.Result.Years,
	}
	if ep.Result.Reset {
		meta["page_reset"] = true
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page, meta))
}

func (h *Handler) CreateEmployee(c echo.Context) error {
	var in EmployeeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.CreateEmployee(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEmployee(c echo.Context) error {
	e, err := h.svc.GetEmployee(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) UpdateEmployee(c echo.Context) error {
	var u EmployeeUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.UpdateEmployee(c.Request().Context(), c.Param("id"), u)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEmployee(c echo.Context) error {
	if err := h.svc.DeleteEmployee(c.Request().Context(), c.Param("id")); err != nil {
		return apperr.HTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ExportEmployees(c echo.Context) error {
	q, err := listview.FromContext(c, h.pageSize)
	if err != nil {
		return apperr.HTTP(err)
	}
	rows, err := h.svc.ExportEmployees(c.Request().Context(), q)
	if err != nil {
		return apperr.HTTP(err)
	}
	if len(rows) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no data to export")
	}
	return export.Attachment(c, "employees", "Employees", rows, time.Now())
}

// AttendanceDay serves ?offset=N, the number of days before today.
func (h *Handler) AttendanceDay(c echo.Context) error {
	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "offset must be a whole number of days")
		}
		offset = n
	}
	day, err := h.svc.AttendanceDay(c.Request().Context(), offset)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) RecordAttendance(c echo.Context) error {
	var in EntryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.RecordAttendance(c.Request().Context(), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) UpdateAttendance(c echo.Context) error {
	var in EntryInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.UpdateAttendance(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

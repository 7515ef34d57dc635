package adherence

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

type Handler struct {
	svc        *Service
	periodDays int
}

func NewHandler(svc *Service, defaultPeriodDays int) *Handler {
	return &Handler{svc: svc, periodDays: defaultPeriodDays}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:patientId/adherence", h.GetReport)
	api.POST("/patients/:patientId/adherence/recompute", h.Recompute)
	api.GET("/patients/:patientId/adherence/weekly", h.WeeklyChart)
}

func httpErr(err error) error {
	return echo.NewHTTPError(fault.HTTPStatus(err), fault.Reason(err))
}

func (h *Handler) GetReport(c echo.Context) error {
	pid, periodDays, err := h.params(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Report(c.Request().Context(), pid, periodDays)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Recompute(c echo.Context) error {
	pid, periodDays, err := h.params(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Compute(c.Request().Context(), pid, periodDays)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) WeeklyChart(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	week, err := h.svc.WeeklyChart(c.Request().Context(), pid)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, week)
}

func (h *Handler) params(c echo.Context) (uuid.UUID, int, error) {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	periodDays := h.periodDays
	if v := c.QueryParam("period_days"); v != "" {
		periodDays, err = strconv.Atoi(v)
		if err != nil || periodDays <= 0 {
			return uuid.Nil, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid period_days")
		}
	}
	return pid, periodDays, nil
}

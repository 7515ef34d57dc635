package schedule

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/schedules", h.CreateSchedule)
	api.GET("/schedules/:id", h.GetSchedule)
	api.GET("/schedules/:id/stock", h.GetStock)
	api.PUT("/schedules/:id/stock", h.SetStock)
	api.POST("/schedules/:id/refill", h.Refill)
	api.POST("/schedules/:id/deactivate", h.Deactivate)

	api.GET("/patients/:patientId/schedules", h.ListSchedules)
	api.GET("/patients/:patientId/schedules/due", h.DueMedications)
	api.GET("/patients/:patientId/schedules/low-stock", h.LowStock)
}

func httpErr(err error) error {
	return echo.NewHTTPError(fault.HTTPStatus(err), fault.Reason(err))
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var sched Schedule
	if err := c.Bind(&sched); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &sched); err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sched, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) GetStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sched, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, levelOf(sched))
}

func (h *Handler) SetStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Stock float64 `json:"stock"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	level, err := h.svc.SetStock(c.Request().Context(), id, body.Stock)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, level)
}

func (h *Handler) Refill(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Quantity float64 `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	level, err := h.svc.Refill(c.Request().Context(), id, body.Quantity)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, level)
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return httpErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSchedules(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	activeOnly := c.QueryParam("active_only") != "false"
	scheds, err := h.svc.ListByPatient(c.Request().Context(), pid, activeOnly)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, scheds)
}

func (h *Handler) DueMedications(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	window := time.Hour
	if v := c.QueryParam("window_minutes"); v != "" {
		mins, err := strconv.Atoi(v)
		if err != nil || mins <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid window_minutes")
		}
		window = time.Duration(mins) * time.Minute
	}
	due, err := h.svc.DueMedications(c.Request().Context(), pid, window)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, due)
}

func (h *Handler) LowStock(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	threshold := 5
	if v := c.QueryParam("threshold_days"); v != "" {
		threshold, err = strconv.Atoi(v)
		if err != nil || threshold < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid threshold_days")
		}
	}
	scheds, err := h.svc.LowStock(c.Request().Context(), pid, threshold)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, scheds)
}

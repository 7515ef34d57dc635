package doselog

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dawaii/dawaii/internal/platform/fault"
	"github.com/dawaii/dawaii/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/doses", h.RecordDose)
	api.GET("/doses/:id", h.GetDose)
	api.PATCH("/doses/:id/status", h.CorrectDose)

	api.GET("/patients/:patientId/doses", h.History)
	api.GET("/patients/:patientId/doses/missed", h.Missed)
}

func httpErr(err error) error {
	return echo.NewHTTPError(fault.HTTPStatus(err), fault.Reason(err))
}

func (h *Handler) RecordDose(c echo.Context) error {
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	occ, err := h.svc.Record(c.Request().Context(), req)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusCreated, occ)
}

func (h *Handler) GetDose(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	occ, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, occ)
}

func (h *Handler) CorrectDose(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Status Status `json:"status"`
		Actor  string `json:"actor"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	occ, err := h.svc.Correct(c.Request().Context(), id, body.Status, body.Actor)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, occ)
}

func (h *Handler) History(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var f HistoryFilter
	if v := c.QueryParam("from"); v != "" {
		f.From, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from")
		}
	}
	if v := c.QueryParam("to"); v != "" {
		f.To, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to")
		}
	}
	f.Status = Status(c.QueryParam("status"))

	page := pagination.FromContext(c)
	f.Limit = page.Limit
	f.Offset = page.Offset

	occs, total, err := h.svc.History(c.Request().Context(), pid, f)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(occs, total, page.Limit, page.Offset))
}

func (h *Handler) Missed(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	since := time.Now().AddDate(0, 0, -7)
	if v := c.QueryParam("since"); v != "" {
		since, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since")
		}
	}
	occs, err := h.svc.Missed(c.Request().Context(), pid, since)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, occs)
}

package reminder

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:patientId/reminders", h.ListSent)
}

// ListSent returns the reminders sent to a patient, newest window first.
// The since parameter defaults to the last 24 hours.
func (h *Handler) ListSent(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	since := time.Now().Add(-24 * time.Hour)
	if v := c.QueryParam("since"); v != "" {
		since, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid since")
		}
	}
	markers, err := h.repo.ListSentSince(c.Request().Context(), pid, since)
	if err != nil {
		return echo.NewHTTPError(fault.HTTPStatus(err), fault.Reason(err))
	}
	return c.JSON(http.StatusOK, markers)
}

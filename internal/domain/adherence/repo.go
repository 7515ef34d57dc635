package adherence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository reads dose outcomes and persists reports and alert markers.
type Repository interface {
	// CountByStatus aggregates terminal occurrence counts for a patient
	// over [from, to).
	CountByStatus(ctx context.Context, patientID uuid.UUID, from, to time.Time) (Stats, error)

	// DailyCounts returns per-day taken/total counts over [from, to).
	DailyCounts(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]DayCount, error)

	// ListPatientsWithDoses returns patients that have any occurrence
	// scheduled in [from, to).
	ListPatientsWithDoses(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)

	UpsertReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, patientID uuid.UUID, periodDays int) (*Report, error)

	// ClaimAlert inserts the alert marker unless one exists for its
	// (patient, schedule, kind, day), and reports whether this caller won.
	ClaimAlert(ctx context.Context, a *Alert) (bool, error)
}

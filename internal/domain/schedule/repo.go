package schedule

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for medication schedules and their
// dose times.
type Repository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Schedule, error)
	ListActive(ctx context.Context) ([]*Schedule, error)
	ListLowStock(ctx context.Context, patientID uuid.UUID, thresholdDays int) ([]*Schedule, error)

	// UpdateStock persists a new stock level together with the derived
	// depletion fields, in one statement.
	UpdateStock(ctx context.Context, id uuid.UUID, stock, daily float64, days int) error
}

package doselog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HistoryFilter narrows a patient's occurrence history.
type HistoryFilter struct {
	From   time.Time
	To     time.Time
	Status Status // empty matches all

	// Limit and Offset page the result. A Limit of zero or less returns
	// everything.
	Limit  int
	Offset int
}

// Repository is the persistence boundary for dose occurrences.
type Repository interface {
	// CreateIfAbsent inserts the occurrence unless one already exists for
	// its (schedule_id, scheduled_for) slot. It reports whether a row was
	// inserted.
	CreateIfAbsent(ctx context.Context, occ *Occurrence) (bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Occurrence, error)
	GetBySlot(ctx context.Context, scheduleID uuid.UUID, scheduledFor time.Time) (*Occurrence, error)
	Update(ctx context.Context, occ *Occurrence) error

	// Finalize writes the occurrence's terminal outcome only while the
	// stored row is still Scheduled, in a single guarded statement. It
	// reports whether this writer won the transition.
	Finalize(ctx context.Context, occ *Occurrence) (bool, error)

	// ListByPatient returns the filtered page of a patient's occurrences
	// along with the total count of matching rows.
	ListByPatient(ctx context.Context, patientID uuid.UUID, f HistoryFilter) ([]*Occurrence, int, error)

	// ListScheduledBefore returns occurrences still in Scheduled state with
	// a scheduled time strictly before the cutoff.
	ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*Occurrence, error)

	// ListScheduledBetween returns Scheduled occurrences with a scheduled
	// time in [from, to].
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*Occurrence, error)
}

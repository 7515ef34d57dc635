package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists reminder markers.
type Repository interface {
	// Claim inserts a marker for the occurrence unless one exists, and
	// reports whether this caller won the claim.
	Claim(ctx context.Context, m *Marker) (bool, error)

	GetByOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*Marker, error)
	ListSentSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Marker, error)
}

// Package reminder sends dose reminders shortly before each scheduled
// administration, at most once per occurrence.
package reminder

import (
	"time"

	"github.com/google/uuid"
)

// Marker records that a reminder was claimed for a dose occurrence. The
// occurrence ID is unique, so concurrent or repeated scans converge on a
// single reminder.
type Marker struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OccurrenceID uuid.UUID `db:"occurrence_id" json:"occurrence_id"`
	ScheduleID   uuid.UUID `db:"schedule_id" json:"schedule_id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	ScheduledFor time.Time `db:"scheduled_for" json:"scheduled_for"`
	SentAt       time.Time `db:"sent_at" json:"sent_at"`
}

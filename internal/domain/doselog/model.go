// Package doselog tracks individual dose occurrences: the materialized
// instances of a schedule's dose times, and what actually happened to each.
package doselog

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a dose occurrence. Scheduled is the only
// non-terminal state; Taken, Missed and Skipped are terminal and can only be
// changed through an explicit correction.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusTaken     Status = "Taken"
	StatusMissed    Status = "Missed"
	StatusSkipped   Status = "Skipped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether the status ends the occurrence's lifecycle.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusScheduled
}

// Occurrence is one expected administration of a schedule at a concrete
// instant. The (schedule_id, scheduled_for) pair is unique: generation and
// lazy materialization converge on the same row.
type Occurrence struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ScheduleID     uuid.UUID  `db:"schedule_id" json:"schedule_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	ScheduledFor   time.Time  `db:"scheduled_for" json:"scheduled_for"`
	Status         Status     `db:"status" json:"status"`
	ActualTime     *time.Time `db:"actual_time" json:"actual_time,omitempty"`

	// QuantityTaken is the stock units consumed when the dose was taken.
	QuantityTaken float64 `db:"quantity_taken" json:"quantity_taken,omitempty"`

	// TimeDiffMinutes is actual minus scheduled, in whole minutes. Set only
	// for taken doses.
	TimeDiffMinutes *int  `db:"time_diff_minutes" json:"time_diff_minutes,omitempty"`
	OnTime          *bool `db:"on_time" json:"on_time,omitempty"`

	// SkipReason is set only on Skipped occurrences.
	SkipReason string `db:"skip_reason" json:"skip_reason,omitempty"`

	Notes      string    `db:"notes" json:"notes,omitempty"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

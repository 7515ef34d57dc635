package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

// Frequency is the human-facing dosing frequency label. When dose times are
// present they are authoritative; the label is a fallback for consumption
// math and display.
type Frequency string

const (
	FreqOnceDaily       Frequency = "Once Daily"
	FreqTwiceDaily      Frequency = "Twice Daily"
	FreqThreeTimesDaily Frequency = "Three Times Daily"
	FreqFourTimesDaily  Frequency = "Four Times Daily"
)

// administrationsPerDay maps a frequency label to its dose count.
var administrationsPerDay = map[Frequency]int{
	FreqOnceDaily:       1,
	FreqTwiceDaily:      2,
	FreqThreeTimesDaily: 3,
	FreqFourTimesDaily:  4,
}

// MaxStock is the sanity cap on a schedule's physical stock.
const MaxStock = 1000

// DoseTime is one recurring time-of-day slot of a schedule.
type DoseTime struct {
	Time         string `db:"dose_time" json:"time"` // "HH:MM", 24-hour
	MealRelation string `db:"meal_relation" json:"meal_relation,omitempty"`
	Note         string `db:"note" json:"note,omitempty"`
}

// Clock parses the HH:MM time-of-day.
func (d DoseTime) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", d.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("parse dose time %q: %w", d.Time, err)
	}
	return t.Hour(), t.Minute(), nil
}

// At returns the concrete instant of this dose time on the given day, in the
// day's location.
func (d DoseTime) At(day time.Time) (time.Time, error) {
	hour, minute, err := d.Clock()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), nil
}

// Schedule is a patient's recurring medication plan: what to take, when, and
// how much physical stock is left. DailyConsumption and DaysUntilDepletion
// are derived; they are recomputed from the current stock and dose times on
// every write and never set independently.
type Schedule struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	ScientificName *string    `db:"scientific_name" json:"scientific_name,omitempty"`
	Dosage         string     `db:"dosage" json:"dosage"` // e.g. "500 mg", may embed a leading quantity
	Frequency      Frequency  `db:"frequency" json:"frequency,omitempty"`
	DoseTimes      []DoseTime `db:"-" json:"dose_times"`

	CurrentStock       float64 `db:"current_stock" json:"current_stock"`
	StockUnit          string  `db:"stock_unit" json:"stock_unit"`
	DailyConsumption   float64 `db:"daily_consumption" json:"daily_consumption"`
	DaysUntilDepletion int     `db:"days_until_depletion" json:"days_until_depletion"`

	ReorderThresholdDays int  `db:"reorder_threshold_days" json:"reorder_threshold_days"`
	AutoReorder          bool `db:"auto_reorder" json:"auto_reorder"`

	Active    bool       `db:"is_active" json:"is_active"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`

	Instructions *string   `db:"instructions" json:"instructions,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks the schedule against the model invariants. now anchors the
// date-range checks.
func (s *Schedule) Validate(now time.Time) error {
	if s.PatientID == uuid.Nil {
		return fault.Validationf("patient_id is required")
	}
	if s.MedicationName == "" {
		return fault.Validationf("medication_name is required")
	}
	if len(s.DoseTimes) == 0 {
		return fault.Validationf("at least one dose time is required")
	}

	seen := make(map[string]bool, len(s.DoseTimes))
	for _, dt := range s.DoseTimes {
		if _, _, err := dt.Clock(); err != nil {
			return fault.Validationf("invalid dose time %q (expected HH:MM)", dt.Time)
		}
		if seen[dt.Time] {
			return fault.Validationf("duplicate dose time %q", dt.Time)
		}
		seen[dt.Time] = true
	}

	if s.CurrentStock < 0 {
		return fault.Validationf("current stock cannot be negative")
	}
	if s.CurrentStock > MaxStock {
		return fault.Validationf("current stock %g exceeds the sanity cap of %d", s.CurrentStock, MaxStock)
	}

	if !s.StartDate.IsZero() && s.StartDate.After(now.AddDate(1, 0, 0)) {
		return fault.Validationf("start date cannot be more than 1 year in the future")
	}
	if s.EndDate != nil && !s.StartDate.IsZero() && s.EndDate.Before(s.StartDate) {
		return fault.Validationf("end date cannot be before start date")
	}

	return nil
}

// ActiveOn reports whether the schedule generates doses on the given day:
// the active flag is set and the day falls within [start, end].
func (s *Schedule) ActiveOn(day time.Time) bool {
	if !s.Active {
		return false
	}
	d := truncateToDay(day)
	if !s.StartDate.IsZero() && d.Before(truncateToDay(s.StartDate)) {
		return false
	}
	if s.EndDate != nil && d.After(truncateToDay(*s.EndDate)) {
		return false
	}
	return true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

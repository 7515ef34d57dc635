// Package adherence aggregates dose outcomes into per-patient adherence
// reports, watches stock levels, and raises the engine's alerts.
package adherence

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Stats are the raw per-period dose counts an adherence report is built
// from. Only terminal occurrences count: a dose still in Scheduled state is
// not yet an outcome.
type Stats struct {
	Total   int `json:"total"`
	Taken   int `json:"taken"`
	Missed  int `json:"missed"`
	Skipped int `json:"skipped"`
	OnTime  int `json:"on_time"`
}

// Report is one patient's adherence over a trailing period. Reports are
// upserted in place per (patient, period length): re-aggregation overwrites,
// it never accumulates rows.
type Report struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	PeriodDays int       `db:"period_days" json:"period_days"`

	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`

	TotalDoses   int `db:"total_doses" json:"total_doses"`
	TakenDoses   int `db:"taken_doses" json:"taken_doses"`
	MissedDoses  int `db:"missed_doses" json:"missed_doses"`
	SkippedDoses int `db:"skipped_doses" json:"skipped_doses"`
	OnTimeDoses  int `db:"on_time_doses" json:"on_time_doses"`

	AdherencePct float64 `db:"adherence_pct" json:"adherence_pct"`
	OnTimePct    float64 `db:"on_time_pct" json:"on_time_pct"`

	GeneratedAt time.Time `db:"generated_at" json:"generated_at"`
}

// RatePct returns part over whole as a percentage rounded to two decimals.
// A zero denominator yields 0, not a division error.
func RatePct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}

// NewReport builds a report from raw stats.
func NewReport(patientID uuid.UUID, periodDays int, from, to time.Time, st Stats) *Report {
	return &Report{
		PatientID:    patientID,
		PeriodDays:   periodDays,
		PeriodStart:  from,
		PeriodEnd:    to,
		TotalDoses:   st.Total,
		TakenDoses:   st.Taken,
		MissedDoses:  st.Missed,
		SkippedDoses: st.Skipped,
		OnTimeDoses:  st.OnTime,
		AdherencePct: RatePct(st.Taken, st.Total),
		OnTimePct:    RatePct(st.OnTime, st.Taken),
	}
}

// Alert is a deduplication record for a raised alert: one row per subject,
// kind and day. Schedule-level alerts set ScheduleID; patient-level alerts
// leave it nil.
type Alert struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	ScheduleID uuid.UUID `db:"schedule_id" json:"schedule_id,omitempty"`
	Kind       string    `db:"kind" json:"kind"`
	ForDate    time.Time `db:"for_date" json:"for_date"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DayCount is one day of the weekly adherence chart.
type DayCount struct {
	Day   time.Time `json:"day"`
	Total int       `json:"total"`
	Taken int       `json:"taken"`
}

package doselog

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/domain/schedule"
	"github.com/dawaii/dawaii/internal/platform/fault"
	"github.com/dawaii/dawaii/internal/platform/notification"
)

// StockConsumer is the slice of the schedule layer that applies inventory
// effects of taken doses. *schedule.Service satisfies it.
type StockConsumer interface {
	ConsumeDose(ctx context.Context, id uuid.UUID, quantity float64) (*schedule.StockLevel, error)
	DoseQuantity(sched *schedule.Schedule) float64
}

// Service records what happened to dose occurrences and keeps stock in step
// with taken doses.
type Service struct {
	repo      Repository
	schedules ScheduleDirectory
	stock     StockConsumer
	sink      notification.Sink
	logger    zerolog.Logger

	// onTimeTolerance is the window around the scheduled time within which
	// a taken dose counts as on time.
	onTimeTolerance time.Duration
	now             func() time.Time
}

func NewService(repo Repository, schedules ScheduleDirectory, stock StockConsumer, sink notification.Sink, onTimeTolerance time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		repo:            repo,
		schedules:       schedules,
		stock:           stock,
		sink:            sink,
		logger:          logger.With().Str("component", "doselog").Logger(),
		onTimeTolerance: onTimeTolerance,
		now:             time.Now,
	}
}

// RecordRequest is one manual dose record.
type RecordRequest struct {
	ScheduleID   uuid.UUID  `json:"schedule_id"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       Status     `json:"status"`
	ActualTime   *time.Time `json:"actual_time,omitempty"`
	SkipReason   string     `json:"skip_reason,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	RecordedBy   string     `json:"recorded_by,omitempty"`
}

// Record marks what happened to one scheduled administration. The occurrence
// is materialized lazily if the generator has not produced it yet. A Taken
// record decrements stock at most once: the terminal status lands through a
// guarded write that only one caller can win, and stock moves only after
// that write wins.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*Occurrence, error) {
	if req.ScheduleID == uuid.Nil {
		return nil, fault.Validationf("schedule_id is required")
	}
	if req.ScheduledFor.IsZero() {
		return nil, fault.Validationf("scheduled_for is required")
	}
	if !req.Status.Terminal() {
		return nil, fault.Validationf("status must be one of Taken, Missed, Skipped")
	}
	if req.SkipReason != "" && req.Status != StatusSkipped {
		return nil, fault.Validationf("skip_reason is only valid with status Skipped")
	}

	now := s.now()
	if req.ScheduledFor.After(now.AddDate(0, 0, 1)) {
		return nil, fault.Validationf("cannot record a dose scheduled more than 1 day ahead")
	}

	sched, err := s.schedules.Get(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}

	occ, err := s.materialize(ctx, sched, req.ScheduledFor)
	if err != nil {
		return nil, err
	}
	if occ.Status.Terminal() {
		return nil, fault.Statef("dose at %s is already %s", occ.ScheduledFor.Format(time.RFC3339), occ.Status)
	}

	occ.Status = req.Status
	occ.SkipReason = req.SkipReason
	occ.Notes = req.Notes
	occ.RecordedBy = req.RecordedBy

	var consume float64
	if req.Status == StatusTaken {
		actual := now
		if req.ActualTime != nil {
			actual = *req.ActualTime
		}
		if actual.After(now) {
			return nil, fault.Validationf("actual time cannot be in the future")
		}
		diff := int(math.Round(actual.Sub(occ.ScheduledFor).Minutes()))
		onTime := math.Abs(actual.Sub(occ.ScheduledFor).Minutes()) <= s.onTimeTolerance.Minutes()
		occ.ActualTime = &actual
		occ.TimeDiffMinutes = &diff
		occ.OnTime = &onTime
		consume = s.stock.DoseQuantity(sched)
		occ.QuantityTaken = consume
	}

	won, err := s.repo.Finalize(ctx, occ)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent writer finished the slot between the read above and
		// this write; their outcome stands and their stock effect applied.
		return nil, fault.Statef("dose at %s was already recorded", occ.ScheduledFor.Format(time.RFC3339))
	}

	if req.Status == StatusTaken {
		if _, err := s.stock.ConsumeDose(ctx, sched.ID, consume); err != nil {
			// The dose stays recorded; stock reconciles on the next manual
			// recount.
			s.logger.Error().Err(err).
				Str("schedule_id", sched.ID.String()).
				Msg("stock decrement failed after dose record")
		}
	}

	if req.Status == StatusMissed {
		s.notifyMissed(ctx, occ)
	}
	return occ, nil
}

// Correct overrides an occurrence's status regardless of terminality. It is
// the administrative escape hatch for bad entries and never touches stock.
func (s *Service) Correct(ctx context.Context, id uuid.UUID, status Status, actor string) (*Occurrence, error) {
	if !status.Valid() {
		return nil, fault.Validationf("invalid status %q", status)
	}
	occ, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := occ.Status
	occ.Status = status
	occ.RecordedBy = actor
	if status != StatusTaken {
		occ.ActualTime = nil
		occ.TimeDiffMinutes = nil
		occ.OnTime = nil
		occ.QuantityTaken = 0
	}
	if status != StatusSkipped {
		occ.SkipReason = ""
	}
	if err := s.repo.Update(ctx, occ); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("occurrence_id", id.String()).
		Str("from", string(prev)).
		Str("to", string(status)).
		Str("actor", actor).
		Msg("dose occurrence corrected")
	return occ, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Occurrence, error) {
	return s.repo.GetByID(ctx, id)
}

// History lists a page of the patient's occurrences, newest first, along
// with the total count of matching rows.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, f HistoryFilter) ([]*Occurrence, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fault.Validationf("invalid status %q", f.Status)
	}
	return s.repo.ListByPatient(ctx, patientID, f)
}

// Missed lists the patient's missed doses since the given time.
func (s *Service) Missed(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Occurrence, error) {
	occs, _, err := s.repo.ListByPatient(ctx, patientID, HistoryFilter{From: since, Status: StatusMissed})
	return occs, err
}

// materialize returns the occurrence for the slot, creating it when the
// generator has not run yet. The created row must match one of the
// schedule's dose times on an active day.
func (s *Service) materialize(ctx context.Context, sched *schedule.Schedule, scheduledFor time.Time) (*Occurrence, error) {
	if occ, err := s.repo.GetBySlot(ctx, sched.ID, scheduledFor); err == nil {
		return occ, nil
	} else if !fault.IsNotFound(err) {
		return nil, err
	}

	if !sched.ActiveOn(scheduledFor) {
		return nil, fault.Validationf("schedule %s is not active on %s", sched.ID, scheduledFor.Format("2006-01-02"))
	}
	if !matchesDoseTime(sched, scheduledFor) {
		return nil, fault.Validationf("%s does not match any dose time of schedule %s", scheduledFor.Format("15:04"), sched.ID)
	}

	occ := &Occurrence{
		ScheduleID:     sched.ID,
		PatientID:      sched.PatientID,
		MedicationName: sched.MedicationName,
		Dosage:         sched.Dosage,
		ScheduledFor:   scheduledFor,
		Status:         StatusScheduled,
	}
	if _, err := s.repo.CreateIfAbsent(ctx, occ); err != nil {
		return nil, err
	}
	// Re-read: a concurrent writer may have won the slot.
	return s.repo.GetBySlot(ctx, sched.ID, scheduledFor)
}

func matchesDoseTime(sched *schedule.Schedule, at time.Time) bool {
	for _, dt := range sched.DoseTimes {
		slot, err := dt.At(at)
		if err != nil {
			continue
		}
		if slot.Equal(at) {
			return true
		}
	}
	return false
}

func (s *Service) notifyMissed(ctx context.Context, occ *Occurrence) {
	if s.sink == nil {
		return
	}
	payload := map[string]string{
		"medication": occ.MedicationName,
		"time":       occ.ScheduledFor.Format("15:04"),
	}
	if err := s.sink.Notify(ctx, occ.PatientID.String(), notification.KindMissedDose, payload); err != nil {
		s.logger.Warn().Err(err).
			Str("occurrence_id", occ.ID.String()).
			Msg("missed-dose notification failed")
	}
}

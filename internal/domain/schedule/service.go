package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/platform/fault"
	"github.com/dawaii/dawaii/internal/platform/notification"
)

// Service owns schedule lifecycle and inventory. All stock mutations go
// through it so that decrements stay serialized per schedule.
type Service struct {
	repo   Repository
	sink   notification.Sink
	logger zerolog.Logger
	policy QuantityPolicy

	now   func() time.Time
	locks stockLocks
}

func NewService(repo Repository, sink notification.Sink, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		sink:   sink,
		logger: logger.With().Str("component", "schedule").Logger(),
		policy: QuantityUnitDose,
		now:    time.Now,
	}
}

// SetQuantityPolicy overrides the default unit-dose consumption policy.
func (s *Service) SetQuantityPolicy(p QuantityPolicy) { s.policy = p }

// stockLocks serializes stock read-modify-write cycles per schedule.
type stockLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func (l *stockLocks) acquire(id uuid.UUID) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[uuid.UUID]*sync.Mutex)
	}
	lk, ok := l.m[id]
	if !ok {
		lk = &sync.Mutex{}
		l.m[id] = lk
	}
	l.mu.Unlock()
	lk.Lock()
	return lk.Unlock
}

// StockLevel is the inventory view returned by stock mutations.
type StockLevel struct {
	ScheduleID         uuid.UUID `json:"schedule_id"`
	QuantityRemaining  float64   `json:"quantity_remaining"`
	DailyConsumption   float64   `json:"daily_consumption"`
	DaysUntilDepletion int       `json:"days_until_depletion"`
	StockUnit          string    `json:"stock_unit"`
	Depleted           bool      `json:"depleted"`
}

func levelOf(sched *Schedule) *StockLevel {
	return &StockLevel{
		ScheduleID:         sched.ID,
		QuantityRemaining:  sched.CurrentStock,
		DailyConsumption:   sched.DailyConsumption,
		DaysUntilDepletion: sched.DaysUntilDepletion,
		StockUnit:          sched.StockUnit,
		Depleted:           sched.CurrentStock <= 0,
	}
}

func (s *Service) Create(ctx context.Context, sched *Schedule) error {
	now := s.now()
	if sched.StartDate.IsZero() {
		sched.StartDate = truncateToDay(now)
	}
	sched.Active = true
	if err := sched.Validate(now); err != nil {
		return err
	}
	if err := Refresh(sched, s.policy); err != nil {
		return err
	}
	return s.repo.Create(ctx, sched)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Schedule, error) {
	return s.repo.ListByPatient(ctx, patientID, activeOnly)
}

func (s *Service) ListActive(ctx context.Context) ([]*Schedule, error) {
	return s.repo.ListActive(ctx)
}

// Deactivate ends the schedule as of today. Deactivated schedules stop
// generating doses and reminders but keep their history.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	sched, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !sched.Active {
		return fault.Statef("schedule %s is already inactive", id)
	}
	today := truncateToDay(s.now())
	sched.Active = false
	if sched.EndDate == nil || sched.EndDate.After(today) {
		sched.EndDate = &today
	}
	return s.repo.Update(ctx, sched)
}

// SetStock replaces the stock count, for example after a manual inventory
// recount.
func (s *Service) SetStock(ctx context.Context, id uuid.UUID, stock float64) (*StockLevel, error) {
	if stock < 0 {
		return nil, fault.Validationf("stock cannot be negative")
	}
	if stock > MaxStock {
		return nil, fault.Validationf("stock %g exceeds the sanity cap of %d", stock, MaxStock)
	}
	unlock := s.locks.acquire(id)
	defer unlock()
	return s.writeStock(ctx, id, func(*Schedule) float64 { return stock })
}

// Refill adds quantity to the stock, clamped at the sanity cap.
func (s *Service) Refill(ctx context.Context, id uuid.UUID, quantity float64) (*StockLevel, error) {
	if quantity <= 0 {
		return nil, fault.Validationf("refill quantity must be positive")
	}
	unlock := s.locks.acquire(id)
	defer unlock()
	return s.writeStock(ctx, id, func(sched *Schedule) float64 {
		next := sched.CurrentStock + quantity
		if next > MaxStock {
			return MaxStock
		}
		return next
	})
}

// ConsumeDose decrements stock for one taken administration. A decrement
// past zero clamps at zero, logs a discrepancy warning, and fires a
// zero-stock notification; the dose itself still counts as taken.
func (s *Service) ConsumeDose(ctx context.Context, id uuid.UUID, quantity float64) (*StockLevel, error) {
	if quantity <= 0 {
		return nil, fault.Validationf("consumed quantity must be positive")
	}
	unlock := s.locks.acquire(id)
	defer unlock()

	var clamped bool
	var med, recipient, unit string
	level, err := s.writeStock(ctx, id, func(sched *Schedule) float64 {
		med, recipient, unit = sched.MedicationName, sched.PatientID.String(), sched.StockUnit
		next := sched.CurrentStock - quantity
		if next < 0 {
			clamped = true
			return 0
		}
		return next
	})
	if err != nil {
		return nil, err
	}

	if clamped {
		s.logger.Warn().
			Str("schedule_id", id.String()).
			Float64("quantity", quantity).
			Msg("stock decrement exceeded remaining stock, clamped at zero")
	}
	if level.Depleted && s.sink != nil {
		payload := map[string]string{"medication": med, "unit": unit, "stock": "0"}
		if err := s.sink.Notify(ctx, recipient, notification.KindZeroStock, payload); err != nil {
			s.logger.Warn().Err(err).Str("schedule_id", id.String()).Msg("zero-stock notification failed")
		}
	}
	return level, nil
}

// writeStock reads the schedule, applies next to compute the new stock,
// refreshes the derived depletion fields, and persists all three together.
// Callers hold the schedule's stock lock.
func (s *Service) writeStock(ctx context.Context, id uuid.UUID, next func(*Schedule) float64) (*StockLevel, error) {
	sched, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sched.CurrentStock = next(sched)
	if err := Refresh(sched, s.policy); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStock(ctx, id, sched.CurrentStock, sched.DailyConsumption, sched.DaysUntilDepletion); err != nil {
		return nil, err
	}
	return levelOf(sched), nil
}

// DoseQuantity returns the stock units one administration of the schedule
// consumes under the service's policy.
func (s *Service) DoseQuantity(sched *Schedule) float64 {
	return PerAdministrationQuantity(sched.Dosage, s.policy)
}

// DueDose is one upcoming administration for the due-medications view.
type DueDose struct {
	ScheduleID     uuid.UUID `json:"schedule_id"`
	MedicationName string    `json:"medication_name"`
	Dosage         string    `json:"dosage"`
	ScheduledFor   time.Time `json:"scheduled_for"`
	MealRelation   string    `json:"meal_relation,omitempty"`
	Note           string    `json:"note,omitempty"`
	CurrentStock   float64   `json:"current_stock"`
	StockUnit      string    `json:"stock_unit"`
}

// DueMedications lists the patient's administrations falling inside
// [now, now+window), soonest first.
func (s *Service) DueMedications(ctx context.Context, patientID uuid.UUID, window time.Duration) ([]*DueDose, error) {
	if window <= 0 {
		return nil, fault.Validationf("window must be positive")
	}
	scheds, err := s.repo.ListByPatient(ctx, patientID, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	end := now.Add(window)
	var due []*DueDose
	// A window can straddle midnight, so check today and tomorrow.
	for _, day := range []time.Time{now, now.AddDate(0, 0, 1)} {
		for _, sched := range scheds {
			if !sched.ActiveOn(day) {
				continue
			}
			for _, dt := range sched.DoseTimes {
				at, err := dt.At(day)
				if err != nil {
					continue
				}
				if at.Before(now) || !at.Before(end) {
					continue
				}
				due = append(due, &DueDose{
					ScheduleID:     sched.ID,
					MedicationName: sched.MedicationName,
					Dosage:         sched.Dosage,
					ScheduledFor:   at,
					MealRelation:   dt.MealRelation,
					Note:           dt.Note,
					CurrentStock:   sched.CurrentStock,
					StockUnit:      sched.StockUnit,
				})
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	return due, nil
}

// LowStock lists active schedules with thresholdDays or fewer days of stock
// left. A nil patient ID spans all patients.
func (s *Service) LowStock(ctx context.Context, patientID uuid.UUID, thresholdDays int) ([]*Schedule, error) {
	if thresholdDays < 0 {
		return nil, fault.Validationf("threshold days cannot be negative")
	}
	return s.repo.ListLowStock(ctx, patientID, thresholdDays)
}

package adherence

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/domain/schedule"
	"github.com/dawaii/dawaii/internal/platform/notification"
	"github.com/dawaii/dawaii/internal/platform/sweep"
)

// ScheduleSource is the slice of the schedule layer the stock checker
// needs. *schedule.Service satisfies it.
type ScheduleSource interface {
	ListActive(ctx context.Context) ([]*schedule.Schedule, error)
}

// StockChecker is the nightly sweep over inventory. Per schedule it raises
// the most severe applicable tier (zero, critical, low) plus a reorder
// alert when an auto-reorder schedule crosses its threshold. Every alert is
// deduplicated per schedule, kind and day.
type StockChecker struct {
	schedules ScheduleSource
	repo      Repository
	sink      notification.Sink
	logger    zerolog.Logger

	lowDays      int
	criticalDays int
	policy       schedule.QuantityPolicy
	now          func() time.Time
}

func NewStockChecker(schedules ScheduleSource, repo Repository, sink notification.Sink, lowDays, criticalDays int, logger zerolog.Logger) *StockChecker {
	return &StockChecker{
		schedules:    schedules,
		repo:         repo,
		sink:         sink,
		logger:       logger.With().Str("component", "stock-checker").Logger(),
		lowDays:      lowDays,
		criticalDays: criticalDays,
		policy:       schedule.QuantityUnitDose,
		now:          time.Now,
	}
}

// SetQuantityPolicy aligns the checker's depletion math with the schedule
// service's consumption policy.
func (c *StockChecker) SetQuantityPolicy(p schedule.QuantityPolicy) { c.policy = p }

func (c *StockChecker) Run(ctx context.Context) sweep.Summary {
	var sum sweep.Summary
	start := c.now()
	defer func() { sum.Duration = time.Since(start).String() }()

	scheds, err := c.schedules.ListActive(ctx)
	if err != nil {
		sum.Fail("list-active", err)
		return sum
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for _, sched := range scheds {
		if err := c.check(ctx, sched, day); err != nil {
			sum.Fail(sched.ID.String(), err)
			continue
		}
		sum.Ok()
	}
	return sum
}

func (c *StockChecker) check(ctx context.Context, sched *schedule.Schedule, day time.Time) error {
	// Recompute from current stock rather than trusting the stored fields:
	// the sweep is what catches drift.
	_, days, err := schedule.Derive(sched, c.policy)
	if err != nil {
		return err
	}

	kind := c.tier(sched.CurrentStock, days)
	if kind != "" {
		if err := c.raise(ctx, sched, kind, day, days); err != nil {
			return err
		}
	}
	if sched.AutoReorder && sched.ReorderThresholdDays > 0 && days <= sched.ReorderThresholdDays {
		if err := c.raise(ctx, sched, notification.KindReorder, day, days); err != nil {
			return err
		}
	}
	return nil
}

func (c *StockChecker) tier(stock float64, days int) notification.Kind {
	switch {
	case stock <= 0:
		return notification.KindZeroStock
	case days <= c.criticalDays:
		return notification.KindCriticalStock
	case days <= c.lowDays:
		return notification.KindLowStock
	}
	return ""
}

func (c *StockChecker) raise(ctx context.Context, sched *schedule.Schedule, kind notification.Kind, day time.Time, days int) error {
	claimed, err := c.repo.ClaimAlert(ctx, &Alert{
		PatientID:  sched.PatientID,
		ScheduleID: sched.ID,
		Kind:       string(kind),
		ForDate:    day,
	})
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	payload := map[string]string{
		"medication": sched.MedicationName,
		"stock":      strconv.FormatFloat(sched.CurrentStock, 'f', -1, 64),
		"unit":       sched.StockUnit,
		"days":       strconv.Itoa(days),
	}
	return c.sink.Notify(ctx, sched.PatientID.String(), kind, payload)
}

package doselog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/domain/schedule"
	"github.com/dawaii/dawaii/internal/platform/sweep"
)

// ScheduleDirectory is the view of the schedule layer the dose log needs.
// *schedule.Service satisfies it.
type ScheduleDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error)
	ListActive(ctx context.Context) ([]*schedule.Schedule, error)
}

// Generator materializes upcoming occurrences ahead of time so reminders and
// reconciliation have rows to work on. Recording a dose that was never
// generated still works: the recorder materializes lazily on the same
// unique slot.
type Generator struct {
	repo      Repository
	schedules ScheduleDirectory
	logger    zerolog.Logger

	lookaheadDays int
	now           func() time.Time
}

func NewGenerator(repo Repository, schedules ScheduleDirectory, lookaheadDays int, logger zerolog.Logger) *Generator {
	return &Generator{
		repo:          repo,
		schedules:     schedules,
		logger:        logger.With().Str("component", "dose-generator").Logger(),
		lookaheadDays: lookaheadDays,
		now:           time.Now,
	}
}

// Run materializes occurrences for every active schedule from today through
// the look-ahead horizon. One failing schedule does not stop the rest.
func (g *Generator) Run(ctx context.Context) sweep.Summary {
	var sum sweep.Summary
	start := g.now()
	defer func() { sum.Duration = time.Since(start).String() }()

	scheds, err := g.schedules.ListActive(ctx)
	if err != nil {
		sum.Fail("list-active", err)
		return sum
	}

	today := start
	for _, sched := range scheds {
		if err := g.generateFor(ctx, sched, today); err != nil {
			sum.Fail(sched.ID.String(), err)
			continue
		}
		sum.Ok()
	}
	return sum
}

func (g *Generator) generateFor(ctx context.Context, sched *schedule.Schedule, today time.Time) error {
	for d := 0; d <= g.lookaheadDays; d++ {
		day := today.AddDate(0, 0, d)
		if !sched.ActiveOn(day) {
			continue
		}
		for _, dt := range sched.DoseTimes {
			at, err := dt.At(day)
			if err != nil {
				return fmt.Errorf("schedule %s: %w", sched.ID, err)
			}
			occ := &Occurrence{
				ScheduleID:     sched.ID,
				PatientID:      sched.PatientID,
				MedicationName: sched.MedicationName,
				Dosage:         sched.Dosage,
				ScheduledFor:   at,
				Status:         StatusScheduled,
			}
			created, err := g.repo.CreateIfAbsent(ctx, occ)
			if err != nil {
				return err
			}
			if created {
				g.logger.Debug().
					Str("schedule_id", sched.ID.String()).
					Time("scheduled_for", at).
					Msg("materialized dose occurrence")
			}
		}
	}
	return nil
}

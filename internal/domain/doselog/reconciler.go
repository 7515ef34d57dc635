package doselog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/platform/sweep"
)

// Reconciler marks overdue Scheduled occurrences as Missed once the grace
// period has passed without a record.
type Reconciler struct {
	repo   Repository
	svc    *Service
	logger zerolog.Logger

	grace time.Duration
	now   func() time.Time
}

func NewReconciler(repo Repository, svc *Service, grace time.Duration, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		svc:    svc,
		logger: logger.With().Str("component", "dose-reconciler").Logger(),
		grace:  grace,
		now:    time.Now,
	}
}

// Run sweeps occurrences whose grace period expired. A missed dose keeps a
// nil actual time; only its status changes. One failing occurrence does not
// stop the rest.
func (r *Reconciler) Run(ctx context.Context) sweep.Summary {
	var sum sweep.Summary
	start := r.now()
	defer func() { sum.Duration = time.Since(start).String() }()

	cutoff := start.Add(-r.grace)
	overdue, err := r.repo.ListScheduledBefore(ctx, cutoff)
	if err != nil {
		sum.Fail("list-overdue", err)
		return sum
	}

	for _, occ := range overdue {
		occ.Status = StatusMissed
		won, err := r.repo.Finalize(ctx, occ)
		if err != nil {
			sum.Fail(occ.ID.String(), err)
			continue
		}
		if !won {
			// Recorded between the list and this write; leave it alone.
			continue
		}
		r.svc.notifyMissed(ctx, occ)
		sum.Ok()
	}
	return sum
}

package doselog

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/domain/schedule"
)

func TestGeneratorRun(t *testing.T) {
	repo := newMockRepo()
	scheds := newMockSchedules()
	sched := testSchedule() // 3 dose times
	scheds.add(sched)

	gen := NewGenerator(repo, scheds, 1, zerolog.Nop())
	gen.now = func() time.Time { return testNow }

	sum := gen.Run(context.Background())
	if sum.Failed != 0 {
		t.Fatalf("unexpected failures: %v", sum.Failures)
	}
	if sum.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1 schedule", sum.Succeeded)
	}
	// Today plus one look-ahead day, 3 times each.
	if got := repo.count(); got != 6 {
		t.Errorf("occurrence count = %d, want 6", got)
	}
}

func TestGeneratorRun_Idempotent(t *testing.T) {
	repo := newMockRepo()
	scheds := newMockSchedules()
	scheds.add(testSchedule())

	gen := NewGenerator(repo, scheds, 1, zerolog.Nop())
	gen.now = func() time.Time { return testNow }

	gen.Run(context.Background())
	first := repo.count()
	gen.Run(context.Background())
	if repo.count() != first {
		t.Errorf("second run grew occurrences from %d to %d", first, repo.count())
	}
}

func TestGeneratorRun_RespectsDateBounds(t *testing.T) {
	repo := newMockRepo()
	scheds := newMockSchedules()
	sched := testSchedule()
	// Ends today: tomorrow's doses must not materialize.
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	sched.EndDate = &end
	scheds.add(sched)

	gen := NewGenerator(repo, scheds, 1, zerolog.Nop())
	gen.now = func() time.Time { return testNow }

	gen.Run(context.Background())
	if got := repo.count(); got != 3 {
		t.Errorf("occurrence count = %d, want 3 (today only)", got)
	}
}

func TestGeneratorRun_SkipsInactive(t *testing.T) {
	repo := newMockRepo()
	scheds := newMockSchedules()
	sched := testSchedule()
	sched.Active = false
	scheds.add(sched)

	gen := NewGenerator(repo, scheds, 1, zerolog.Nop())
	gen.now = func() time.Time { return testNow }

	gen.Run(context.Background())
	if got := repo.count(); got != 0 {
		t.Errorf("inactive schedule materialized %d occurrences", got)
	}
}

func TestGeneratorRun_IsolatesBadSchedule(t *testing.T) {
	repo := newMockRepo()
	scheds := newMockSchedules()

	bad := testSchedule()
	bad.DoseTimes = []schedule.DoseTime{{Time: "25:99"}}
	scheds.add(bad)
	good := testSchedule()
	scheds.add(good)

	gen := NewGenerator(repo, scheds, 0, zerolog.Nop())
	gen.now = func() time.Time { return testNow }

	sum := gen.Run(context.Background())
	if sum.Failed != 1 || sum.Succeeded != 1 {
		t.Errorf("summary = %d ok / %d failed, want 1/1", sum.Succeeded, sum.Failed)
	}
	if got := repo.count(); got != 3 {
		t.Errorf("good schedule should still materialize, got %d occurrences", got)
	}
}

package adherence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/platform/notification"
)

func newTestAggregator(repo *mockRepo, sink *mockSink) *Aggregator {
	svc := newTestService(repo)
	agg := NewAggregator(svc, repo, sink, 30, 80, zerolog.Nop())
	agg.now = func() time.Time { return testNow }
	return agg
}

func TestAggregatorRun(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}

	good := uuid.New()
	poor := uuid.New()
	repo.stats[good] = Stats{Total: 20, Taken: 16} // exactly 80: no alert
	repo.stats[poor] = Stats{Total: 16, Taken: 12} // 75: alert

	sum := newTestAggregator(repo, sink).Run(context.Background())
	if sum.Failed != 0 {
		t.Fatalf("unexpected failures: %v", sum.Failures)
	}
	if sum.Succeeded != 2 {
		t.Errorf("succeeded = %d, want 2", sum.Succeeded)
	}

	if _, err := repo.GetReport(context.Background(), good, 30); err != nil {
		t.Error("expected report for the adherent patient")
	}

	calls := sink.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(calls))
	}
	if calls[0].Kind != notification.KindLowAdherence {
		t.Errorf("kind = %s, want low-adherence", calls[0].Kind)
	}
	if calls[0].Recipient != poor.String() {
		t.Error("alert should target the poorly adherent patient")
	}
	if calls[0].Payload["adherence"] != "75" {
		t.Errorf("payload adherence = %q, want 75", calls[0].Payload["adherence"])
	}
}

func TestAggregatorRun_ThresholdIsStrict(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	pid := uuid.New()
	repo.stats[pid] = Stats{Total: 20, Taken: 16} // 80.0 exactly

	newTestAggregator(repo, sink).Run(context.Background())
	if len(sink.Calls()) != 0 {
		t.Error("exactly at threshold must not alert")
	}
}

func TestAggregatorRun_AlertOncePerDay(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	pid := uuid.New()
	repo.stats[pid] = Stats{Total: 10, Taken: 2}

	agg := newTestAggregator(repo, sink)
	agg.Run(context.Background())
	agg.Run(context.Background())
	if len(sink.Calls()) != 1 {
		t.Errorf("expected 1 alert across same-day runs, got %d", len(sink.Calls()))
	}
}

func TestAggregatorRun_NoDosesNoAlert(t *testing.T) {
	repo := newMockRepo()
	sink := &mockSink{}
	pid := uuid.New()
	repo.stats[pid] = Stats{} // patient listed but nothing terminal

	sum := newTestAggregator(repo, sink).Run(context.Background())
	if sum.Succeeded != 1 {
		t.Errorf("patient with no outcomes still aggregates, got %+v", sum)
	}
	if len(sink.Calls()) != 0 {
		t.Error("0% of 0 doses must not alert")
	}
}

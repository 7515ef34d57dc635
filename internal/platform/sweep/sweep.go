// Package sweep schedules the engine's periodic background duties (reminder
// scan, missed-dose reconciliation, adherence aggregation, stock checks).
// Each duty runs on its own cron cadence, never overlaps itself, and reports
// a per-run summary instead of failing the whole batch on one bad entity.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Failure records one failed unit of work inside a sweep run.
type Failure struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Summary aggregates the outcome of one sweep run. Units are schedules or
// patients depending on the duty.
type Summary struct {
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
	Duration  string    `json:"duration,omitempty"`
}

// Ok counts a successfully processed unit.
func (s *Summary) Ok() {
	s.Processed++
	s.Succeeded++
}

// Fail counts a failed unit and records why. The run continues.
func (s *Summary) Fail(key string, err error) {
	s.Processed++
	s.Failed++
	s.Failures = append(s.Failures, Failure{Key: key, Reason: err.Error()})
}

// Func is one sweep pass. Implementations isolate per-entity failures and
// return a summary rather than an error.
type Func func(ctx context.Context) Summary

type duty struct {
	name    string
	spec    string
	fn      Func
	running int32
}

// Scheduler dispatches registered duties on their cron cadences.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu     sync.RWMutex
	duties map[string]*duty
}

// NewScheduler creates a Scheduler. Duties are registered before Start.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		duties: make(map[string]*duty),
	}
}

// Register adds a duty under a unique name with a standard 5-field cron spec.
func (s *Scheduler) Register(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.duties[name]; exists {
		return fmt.Errorf("duty %q already registered", name)
	}

	d := &duty{name: name, spec: spec, fn: fn}
	if _, err := s.cron.AddFunc(spec, func() { s.run(d) }); err != nil {
		return fmt.Errorf("register duty %q with spec %q: %w", name, spec, err)
	}
	s.duties[name] = d
	return nil
}

// Start begins cron dispatch in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("duties", len(s.duties)).Msg("sweep scheduler started")
}

// Stop halts dispatch and waits for the in-flight pass to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("sweep scheduler stopped")
}

// RunNow triggers one duty immediately, outside its cadence. Used by the CLI
// sweep subcommands and the admin API. The overlap guard still applies.
func (s *Scheduler) RunNow(name string) (Summary, error) {
	s.mu.RLock()
	d, ok := s.duties[name]
	s.mu.RUnlock()
	if !ok {
		return Summary{}, fmt.Errorf("unknown duty %q", name)
	}
	return s.run(d), nil
}

// Names returns the registered duty names.
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.duties))
	for name := range s.duties {
		names = append(names, name)
	}
	return names
}

// run executes one pass of a duty. If a prior pass for the same duty is
// still running the new one is skipped, not queued.
func (s *Scheduler) run(d *duty) Summary {
	if !atomic.CompareAndSwapInt32(&d.running, 0, 1) {
		s.logger.Warn().Str("duty", d.name).Msg("previous pass still running, skipping")
		return Summary{}
	}
	defer atomic.StoreInt32(&d.running, 0)

	start := time.Now()
	summary := d.fn(context.Background())
	summary.Duration = time.Since(start).String()

	evt := s.logger.Info()
	if summary.Failed > 0 {
		evt = s.logger.Error()
	}
	evt.
		Str("duty", d.name).
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Str("duration", summary.Duration).
		Msg("sweep pass finished")

	return summary
}

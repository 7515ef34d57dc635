package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/domain/doselog"
	"github.com/dawaii/dawaii/internal/platform/notification"
	"github.com/dawaii/dawaii/internal/platform/sweep"
)

// OccurrenceSource is the slice of the dose log the scanner reads.
// doselog.Repository satisfies it.
type OccurrenceSource interface {
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*doselog.Occurrence, error)
}

// Scanner finds doses coming up inside the reminder window and sends one
// reminder each. The marker claim happens before the send, so a reminder is
// delivered at most once even when scans overlap or repeat.
type Scanner struct {
	occurrences OccurrenceSource
	markers     Repository
	sink        notification.Sink
	logger      zerolog.Logger

	window time.Duration
	now    func() time.Time
}

func NewScanner(occurrences OccurrenceSource, markers Repository, sink notification.Sink, window time.Duration, logger zerolog.Logger) *Scanner {
	return &Scanner{
		occurrences: occurrences,
		markers:     markers,
		sink:        sink,
		logger:      logger.With().Str("component", "reminder-scanner").Logger(),
		window:      window,
		now:         time.Now,
	}
}

// Run scans [now, now+window] once. Occurrences already claimed are skipped
// silently; a failing send counts as a failure but does not stop the pass.
func (s *Scanner) Run(ctx context.Context) sweep.Summary {
	var sum sweep.Summary
	start := s.now()
	defer func() { sum.Duration = time.Since(start).String() }()

	upcoming, err := s.occurrences.ListScheduledBetween(ctx, start, start.Add(s.window))
	if err != nil {
		sum.Fail("list-upcoming", err)
		return sum
	}

	for _, occ := range upcoming {
		claimed, err := s.markers.Claim(ctx, &Marker{
			OccurrenceID: occ.ID,
			ScheduleID:   occ.ScheduleID,
			PatientID:    occ.PatientID,
			ScheduledFor: occ.ScheduledFor,
			SentAt:       start,
		})
		if err != nil {
			sum.Fail(occ.ID.String(), err)
			continue
		}
		if !claimed {
			continue
		}

		payload := map[string]string{
			"medication": occ.MedicationName,
			"dosage":     occ.Dosage,
			"time":       occ.ScheduledFor.Format("15:04"),
		}
		if err := s.sink.Notify(ctx, occ.PatientID.String(), notification.KindDoseReminder, payload); err != nil {
			sum.Fail(occ.ID.String(), err)
			continue
		}
		sum.Ok()
	}
	return sum
}

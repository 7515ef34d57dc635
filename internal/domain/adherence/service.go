package adherence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "adherence").Logger(),
		now:    time.Now,
	}
}

// Compute builds a fresh report for the patient over the trailing period and
// upserts it in place.
func (s *Service) Compute(ctx context.Context, patientID uuid.UUID, periodDays int) (*Report, error) {
	if periodDays <= 0 {
		return nil, fault.Validationf("period days must be positive")
	}
	to := s.now()
	from := to.AddDate(0, 0, -periodDays)
	st, err := s.repo.CountByStatus(ctx, patientID, from, to)
	if err != nil {
		return nil, err
	}
	rep := NewReport(patientID, periodDays, from, to, st)
	rep.GeneratedAt = to
	if err := s.repo.UpsertReport(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// Report returns the stored report for the period, computing one when none
// has been aggregated yet.
func (s *Service) Report(ctx context.Context, patientID uuid.UUID, periodDays int) (*Report, error) {
	rep, err := s.repo.GetReport(ctx, patientID, periodDays)
	if fault.IsNotFound(err) {
		return s.Compute(ctx, patientID, periodDays)
	}
	return rep, err
}

// WeeklyChart returns the last 7 whole days of taken/total counts, padding
// days without doses so the chart always has 7 points.
func (s *Service) WeeklyChart(ctx context.Context, patientID uuid.UUID) ([]DayCount, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	from := today.AddDate(0, 0, -6)
	to := today.AddDate(0, 0, 1)

	counts, err := s.repo.DailyCounts(ctx, patientID, from, to)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]DayCount, len(counts))
	for _, dc := range counts {
		byDay[dc.Day.Format("2006-01-02")] = dc
	}
	week := make([]DayCount, 0, 7)
	for d := 0; d < 7; d++ {
		day := from.AddDate(0, 0, d)
		if dc, ok := byDay[day.Format("2006-01-02")]; ok {
			dc.Day = day
			week = append(week, dc)
		} else {
			week = append(week, DayCount{Day: day})
		}
	}
	return week, nil
}

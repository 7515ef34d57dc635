package adherence

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawaii/dawaii/internal/platform/notification"
	"github.com/dawaii/dawaii/internal/platform/sweep"
)

// Aggregator is the nightly sweep that recomputes every active patient's
// adherence report and alerts on poor adherence.
type Aggregator struct {
	svc    *Service
	repo   Repository
	sink   notification.Sink
	logger zerolog.Logger

	periodDays int
	alertPct   float64
	now        func() time.Time
}

func NewAggregator(svc *Service, repo Repository, sink notification.Sink, periodDays int, alertPct float64, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		svc:        svc,
		repo:       repo,
		sink:       sink,
		logger:     logger.With().Str("component", "adherence-aggregator").Logger(),
		periodDays: periodDays,
		alertPct:   alertPct,
		now:        time.Now,
	}
}

// Run recomputes reports for every patient with doses in the trailing
// period. An adherence rate strictly below the threshold raises a
// low-adherence alert, at most once per patient per day.
func (a *Aggregator) Run(ctx context.Context) sweep.Summary {
	var sum sweep.Summary
	start := a.now()
	defer func() { sum.Duration = time.Since(start).String() }()

	from := start.AddDate(0, 0, -a.periodDays)
	patients, err := a.repo.ListPatientsWithDoses(ctx, from, start)
	if err != nil {
		sum.Fail("list-patients", err)
		return sum
	}

	for _, pid := range patients {
		rep, err := a.svc.Compute(ctx, pid, a.periodDays)
		if err != nil {
			sum.Fail(pid.String(), err)
			continue
		}
		if rep.TotalDoses > 0 && rep.AdherencePct < a.alertPct {
			a.alertLowAdherence(ctx, rep, start)
		}
		sum.Ok()
	}
	return sum
}

func (a *Aggregator) alertLowAdherence(ctx context.Context, rep *Report, now time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	claimed, err := a.repo.ClaimAlert(ctx, &Alert{
		PatientID: rep.PatientID,
		Kind:      string(notification.KindLowAdherence),
		ForDate:   day,
	})
	if err != nil {
		a.logger.Warn().Err(err).Str("patient_id", rep.PatientID.String()).Msg("low-adherence alert claim failed")
		return
	}
	if !claimed {
		return
	}
	payload := map[string]string{
		"period":    strconv.Itoa(rep.PeriodDays),
		"adherence": strconv.FormatFloat(rep.AdherencePct, 'f', -1, 64),
	}
	if err := a.sink.Notify(ctx, rep.PatientID.String(), notification.KindLowAdherence, payload); err != nil {
		a.logger.Warn().Err(err).Str("patient_id", rep.PatientID.String()).Msg("low-adherence notification failed")
	}
}

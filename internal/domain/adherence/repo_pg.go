package adherence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dawaii/dawaii/internal/platform/fault"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) CountByStatus(ctx context.Context, patientID uuid.UUID, from, to time.Time) (Stats, error) {
	var st Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'Scheduled'),
			COUNT(*) FILTER (WHERE status = 'Taken'),
			COUNT(*) FILTER (WHERE status = 'Missed'),
			COUNT(*) FILTER (WHERE status = 'Skipped'),
			COUNT(*) FILTER (WHERE status = 'Taken' AND on_time)
		FROM dose_occurrence
		WHERE patient_id = $1 AND scheduled_for >= $2 AND scheduled_for < $3`,
		patientID, from, to).
		Scan(&st.Total, &st.Taken, &st.Missed, &st.Skipped, &st.OnTime)
	if err != nil {
		return Stats{}, fault.Transient("count dose outcomes", err)
	}
	return st, nil
}

func (r *repoPG) DailyCounts(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]DayCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			date_trunc('day', scheduled_for) AS day,
			COUNT(*) FILTER (WHERE status <> 'Scheduled'),
			COUNT(*) FILTER (WHERE status = 'Taken')
		FROM dose_occurrence
		WHERE patient_id = $1 AND scheduled_for >= $2 AND scheduled_for < $3
		GROUP BY day ORDER BY day`,
		patientID, from, to)
	if err != nil {
		return nil, fault.Transient("daily dose counts", err)
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Total, &dc.Taken); err != nil {
			return nil, fault.Transient("scan daily count", err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient("iterate daily counts", err)
	}
	return out, nil
}

func (r *repoPG) ListPatientsWithDoses(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT patient_id FROM dose_occurrence
		WHERE scheduled_for >= $1 AND scheduled_for < $2`, from, to)
	if err != nil {
		return nil, fault.Transient("list patients with doses", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fault.Transient("scan patient id", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient("iterate patients", err)
	}
	return out, nil
}

func (r *repoPG) UpsertReport(ctx context.Context, rep *Report) error {
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO adherence_report (
			id, patient_id, period_days, period_start, period_end,
			total_doses, taken_doses, missed_doses, skipped_doses, on_time_doses,
			adherence_pct, on_time_pct, generated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
		ON CONFLICT (patient_id, period_days) DO UPDATE SET
			period_start=EXCLUDED.period_start, period_end=EXCLUDED.period_end,
			total_doses=EXCLUDED.total_doses, taken_doses=EXCLUDED.taken_doses,
			missed_doses=EXCLUDED.missed_doses, skipped_doses=EXCLUDED.skipped_doses,
			on_time_doses=EXCLUDED.on_time_doses,
			adherence_pct=EXCLUDED.adherence_pct, on_time_pct=EXCLUDED.on_time_pct,
			generated_at=NOW()`,
		rep.ID, rep.PatientID, rep.PeriodDays, rep.PeriodStart, rep.PeriodEnd,
		rep.TotalDoses, rep.TakenDoses, rep.MissedDoses, rep.SkippedDoses, rep.OnTimeDoses,
		rep.AdherencePct, rep.OnTimePct,
	)
	if err != nil {
		return fault.Transient("upsert adherence report", err)
	}
	return nil
}

func (r *repoPG) GetReport(ctx context.Context, patientID uuid.UUID, periodDays int) (*Report, error) {
	var rep Report
	err := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, period_days, period_start, period_end,
			total_doses, taken_doses, missed_doses, skipped_doses, on_time_doses,
			adherence_pct, on_time_pct, generated_at
		FROM adherence_report WHERE patient_id = $1 AND period_days = $2`,
		patientID, periodDays).
		Scan(&rep.ID, &rep.PatientID, &rep.PeriodDays, &rep.PeriodStart, &rep.PeriodEnd,
			&rep.TotalDoses, &rep.TakenDoses, &rep.MissedDoses, &rep.SkippedDoses, &rep.OnTimeDoses,
			&rep.AdherencePct, &rep.OnTimePct, &rep.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("no adherence report for patient %s", patientID)
		}
		return nil, fault.Transient("get adherence report", err)
	}
	return &rep, nil
}

func (r *repoPG) ClaimAlert(ctx context.Context, a *Alert) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO alert_log (id, patient_id, schedule_id, kind, for_date)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (patient_id, schedule_id, kind, for_date) DO NOTHING`,
		a.ID, a.PatientID, a.ScheduleID, a.Kind, a.ForDate,
	)
	if err != nil {
		return false, fault.Transient("claim alert", err)
	}
	return tag.RowsAffected() == 1, nil
}

package doselog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dawaii/dawaii/internal/platform/db"
	"github.com/dawaii/dawaii/internal/platform/fault"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const occCols = `id, schedule_id, patient_id, medication_name, dosage, scheduled_for,
	status, actual_time, quantity_taken, time_diff_minutes, on_time,
	skip_reason, notes, recorded_by, created_at, updated_at`

func (r *repoPG) CreateIfAbsent(ctx context.Context, occ *Occurrence) (bool, error) {
	if occ.ID == uuid.Nil {
		occ.ID = uuid.New()
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_occurrence (
			id, schedule_id, patient_id, medication_name, dosage, scheduled_for,
			status, actual_time, quantity_taken, time_diff_minutes, on_time,
			skip_reason, notes, recorded_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (schedule_id, scheduled_for) DO NOTHING`,
		occ.ID, occ.ScheduleID, occ.PatientID, occ.MedicationName, occ.Dosage, occ.ScheduledFor,
		occ.Status, occ.ActualTime, occ.QuantityTaken, occ.TimeDiffMinutes, occ.OnTime,
		occ.SkipReason, occ.Notes, occ.RecordedBy,
	)
	if err != nil {
		return false, fault.Transient("create occurrence", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Occurrence, error) {
	occ, err := scanOcc(r.conn(ctx).QueryRow(ctx,
		`SELECT `+occCols+` FROM dose_occurrence WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("dose occurrence %s not found", id)
		}
		return nil, fault.Transient("get occurrence", err)
	}
	return occ, nil
}

func (r *repoPG) GetBySlot(ctx context.Context, scheduleID uuid.UUID, scheduledFor time.Time) (*Occurrence, error) {
	occ, err := scanOcc(r.conn(ctx).QueryRow(ctx,
		`SELECT `+occCols+` FROM dose_occurrence WHERE schedule_id = $1 AND scheduled_for = $2`,
		scheduleID, scheduledFor))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("no occurrence of schedule %s at %s", scheduleID, scheduledFor.Format(time.RFC3339))
		}
		return nil, fault.Transient("get occurrence by slot", err)
	}
	return occ, nil
}

func (r *repoPG) Update(ctx context.Context, occ *Occurrence) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dose_occurrence SET
			status=$2, actual_time=$3, quantity_taken=$4, time_diff_minutes=$5,
			on_time=$6, skip_reason=$7, notes=$8, recorded_by=$9, updated_at=NOW()
		WHERE id = $1`,
		occ.ID, occ.Status, occ.ActualTime, occ.QuantityTaken, occ.TimeDiffMinutes,
		occ.OnTime, occ.SkipReason, occ.Notes, occ.RecordedBy,
	)
	if err != nil {
		return fault.Transient("update occurrence", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("dose occurrence %s not found", occ.ID)
	}
	return nil
}

func (r *repoPG) Finalize(ctx context.Context, occ *Occurrence) (bool, error) {
	// The status predicate makes the Scheduled to terminal transition a
	// single compare-and-set; concurrent writers race on the row and
	// exactly one sees RowsAffected == 1.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dose_occurrence SET
			status=$2, actual_time=$3, quantity_taken=$4, time_diff_minutes=$5,
			on_time=$6, skip_reason=$7, notes=$8, recorded_by=$9, updated_at=NOW()
		WHERE id = $1 AND status = $10`,
		occ.ID, occ.Status, occ.ActualTime, occ.QuantityTaken, occ.TimeDiffMinutes,
		occ.OnTime, occ.SkipReason, occ.Notes, occ.RecordedBy, StatusScheduled,
	)
	if err != nil {
		return false, fault.Transient("finalize occurrence", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, f HistoryFilter) ([]*Occurrence, int, error) {
	where := ` WHERE patient_id = $1`
	args := []interface{}{patientID}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where += ` AND scheduled_for >= $` + strconv.Itoa(len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where += ` AND scheduled_for < $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}

	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dose_occurrence`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fault.Transient("count occurrences", err)
	}

	sql := `SELECT ` + occCols + ` FROM dose_occurrence` + where + ` ORDER BY scheduled_for DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += ` LIMIT $` + strconv.Itoa(len(args))
		args = append(args, f.Offset)
		sql += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fault.Transient("list occurrences", err)
	}
	defer rows.Close()
	occs, err := collectOccs(rows)
	if err != nil {
		return nil, 0, err
	}
	return occs, total, nil
}

func (r *repoPG) ListScheduledBefore(ctx context.Context, cutoff time.Time) ([]*Occurrence, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+occCols+` FROM dose_occurrence
		 WHERE status = $1 AND scheduled_for < $2
		 ORDER BY scheduled_for`,
		StatusScheduled, cutoff)
	if err != nil {
		return nil, fault.Transient("list overdue occurrences", err)
	}
	defer rows.Close()
	return collectOccs(rows)
}

func (r *repoPG) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]*Occurrence, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+occCols+` FROM dose_occurrence
		 WHERE status = $1 AND scheduled_for BETWEEN $2 AND $3
		 ORDER BY scheduled_for`,
		StatusScheduled, from, to)
	if err != nil {
		return nil, fault.Transient("list upcoming occurrences", err)
	}
	defer rows.Close()
	return collectOccs(rows)
}

func scanOcc(row pgx.Row) (*Occurrence, error) {
	var o Occurrence
	err := row.Scan(
		&o.ID, &o.ScheduleID, &o.PatientID, &o.MedicationName, &o.Dosage, &o.ScheduledFor,
		&o.Status, &o.ActualTime, &o.QuantityTaken, &o.TimeDiffMinutes, &o.OnTime,
		&o.SkipReason, &o.Notes, &o.RecordedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func collectOccs(rows pgx.Rows) ([]*Occurrence, error) {
	var occs []*Occurrence
	for rows.Next() {
		o, err := scanOcc(rows)
		if err != nil {
			return nil, fault.Transient("scan occurrence", err)
		}
		occs = append(occs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient("iterate occurrences", err)
	}
	return occs, nil
}

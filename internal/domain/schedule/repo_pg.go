package schedule

import (
	"context"
	"errors"

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

const schedCols = `id, patient_id, medication_name, scientific_name, dosage, frequency,
	current_stock, stock_unit, daily_consumption, days_until_depletion,
	reorder_threshold_days, auto_reorder, is_active, start_date, end_date,
	instructions, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, s *Schedule) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		_, err := q.Exec(ctx, `
			INSERT INTO medication_schedule (
				id, patient_id, medication_name, scientific_name, dosage, frequency,
				current_stock, stock_unit, daily_consumption, days_until_depletion,
				reorder_threshold_days, auto_reorder, is_active, start_date, end_date, instructions
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			s.ID, s.PatientID, s.MedicationName, s.ScientificName, s.Dosage, s.Frequency,
			s.CurrentStock, s.StockUnit, s.DailyConsumption, s.DaysUntilDepletion,
			s.ReorderThresholdDays, s.AutoReorder, s.Active, s.StartDate, s.EndDate, s.Instructions,
		)
		if err != nil {
			return err
		}
		return insertDoseTimes(ctx, q, s.ID, s.DoseTimes)
	})
	if err != nil {
		return fault.Transient("create schedule", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+schedCols+` FROM medication_schedule WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("schedule %s not found", id)
		}
		return nil, fault.Transient("get schedule", err)
	}
	if err := r.loadDoseTimes(ctx, []*Schedule{s}); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repoPG) Update(ctx context.Context, s *Schedule) error {
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		tag, err := q.Exec(ctx, `
			UPDATE medication_schedule SET
				medication_name=$2, scientific_name=$3, dosage=$4, frequency=$5,
				current_stock=$6, stock_unit=$7, daily_consumption=$8, days_until_depletion=$9,
				reorder_threshold_days=$10, auto_reorder=$11, is_active=$12,
				start_date=$13, end_date=$14, instructions=$15, updated_at=NOW()
			WHERE id = $1`,
			s.ID, s.MedicationName, s.ScientificName, s.Dosage, s.Frequency,
			s.CurrentStock, s.StockUnit, s.DailyConsumption, s.DaysUntilDepletion,
			s.ReorderThresholdDays, s.AutoReorder, s.Active,
			s.StartDate, s.EndDate, s.Instructions,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if _, err := q.Exec(ctx, `DELETE FROM dose_time WHERE schedule_id = $1`, s.ID); err != nil {
			return err
		}
		return insertDoseTimes(ctx, q, s.ID, s.DoseTimes)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.NotFoundf("schedule %s not found", s.ID)
	}
	if err != nil {
		return fault.Transient("update schedule", err)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Schedule, error) {
	sql := `SELECT ` + schedCols + ` FROM medication_schedule WHERE patient_id = $1`
	if activeOnly {
		sql += ` AND is_active`
	}
	sql += ` ORDER BY medication_name`
	rows, err := r.conn(ctx).Query(ctx, sql, patientID)
	if err != nil {
		return nil, fault.Transient("list schedules", err)
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Schedule, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+schedCols+` FROM medication_schedule WHERE is_active ORDER BY patient_id, medication_name`)
	if err != nil {
		return nil, fault.Transient("list active schedules", err)
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

func (r *repoPG) ListLowStock(ctx context.Context, patientID uuid.UUID, thresholdDays int) ([]*Schedule, error) {
	sql := `SELECT ` + schedCols + ` FROM medication_schedule
		WHERE is_active AND days_until_depletion <= $1`
	args := []interface{}{thresholdDays}
	if patientID != uuid.Nil {
		sql += ` AND patient_id = $2`
		args = append(args, patientID)
	}
	sql += ` ORDER BY days_until_depletion, medication_name`
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fault.Transient("list low stock", err)
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

func (r *repoPG) UpdateStock(ctx context.Context, id uuid.UUID, stock, daily float64, days int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_schedule
		SET current_stock=$2, daily_consumption=$3, days_until_depletion=$4, updated_at=NOW()
		WHERE id = $1`,
		id, stock, daily, days)
	if err != nil {
		return fault.Transient("update stock", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFoundf("schedule %s not found", id)
	}
	return nil
}

func insertDoseTimes(ctx context.Context, q querier, scheduleID uuid.UUID, times []DoseTime) error {
	for _, dt := range times {
		_, err := q.Exec(ctx, `
			INSERT INTO dose_time (id, schedule_id, dose_time, meal_relation, note)
			VALUES ($1,$2,$3,$4,$5)`,
			uuid.New(), scheduleID, dt.Time, dt.MealRelation, dt.Note)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) collect(ctx context.Context, rows pgx.Rows) ([]*Schedule, error) {
	var scheds []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fault.Transient("scan schedule", err)
		}
		scheds = append(scheds, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient("iterate schedules", err)
	}
	if err := r.loadDoseTimes(ctx, scheds); err != nil {
		return nil, err
	}
	return scheds, nil
}

func (r *repoPG) loadDoseTimes(ctx context.Context, scheds []*Schedule) error {
	if len(scheds) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(scheds))
	byID := make(map[uuid.UUID]*Schedule, len(scheds))
	for i, s := range scheds {
		ids[i] = s.ID
		byID[s.ID] = s
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT schedule_id, dose_time, meal_relation, note
		FROM dose_time WHERE schedule_id = ANY($1) ORDER BY dose_time`, ids)
	if err != nil {
		return fault.Transient("load dose times", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sid uuid.UUID
		var dt DoseTime
		if err := rows.Scan(&sid, &dt.Time, &dt.MealRelation, &dt.Note); err != nil {
			return fault.Transient("scan dose time", err)
		}
		if s, ok := byID[sid]; ok {
			s.DoseTimes = append(s.DoseTimes, dt)
		}
	}
	return rows.Err()
}

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(
		&s.ID, &s.PatientID, &s.MedicationName, &s.ScientificName, &s.Dosage, &s.Frequency,
		&s.CurrentStock, &s.StockUnit, &s.DailyConsumption, &s.DaysUntilDepletion,
		&s.ReorderThresholdDays, &s.AutoReorder, &s.Active, &s.StartDate, &s.EndDate,
		&s.Instructions, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

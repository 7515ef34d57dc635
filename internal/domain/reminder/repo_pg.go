package reminder

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

func (r *repoPG) Claim(ctx context.Context, m *Marker) (bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO reminder_marker (id, occurrence_id, schedule_id, patient_id, scheduled_for, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (occurrence_id) DO NOTHING`,
		m.ID, m.OccurrenceID, m.ScheduleID, m.PatientID, m.ScheduledFor, m.SentAt,
	)
	if err != nil {
		return false, fault.Transient("claim reminder", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) GetByOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*Marker, error) {
	var m Marker
	err := r.pool.QueryRow(ctx, `
		SELECT id, occurrence_id, schedule_id, patient_id, scheduled_for, sent_at
		FROM reminder_marker WHERE occurrence_id = $1`, occurrenceID).
		Scan(&m.ID, &m.OccurrenceID, &m.ScheduleID, &m.PatientID, &m.ScheduledFor, &m.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NotFoundf("no reminder for occurrence %s", occurrenceID)
		}
		return nil, fault.Transient("get reminder", err)
	}
	return &m, nil
}

func (r *repoPG) ListSentSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Marker, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, occurrence_id, schedule_id, patient_id, scheduled_for, sent_at
		FROM reminder_marker WHERE patient_id = $1 AND sent_at >= $2
		ORDER BY sent_at DESC`, patientID, since)
	if err != nil {
		return nil, fault.Transient("list reminders", err)
	}
	defer rows.Close()

	var out []*Marker
	for rows.Next() {
		var m Marker
		if err := rows.Scan(&m.ID, &m.OccurrenceID, &m.ScheduleID, &m.PatientID, &m.ScheduledFor, &m.SentAt); err != nil {
			return nil, fault.Transient("scan reminder", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Transient("iterate reminders", err)
	}
	return out, nil
}

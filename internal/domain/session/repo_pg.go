package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Repository backed by the treatment_session table.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const sessionCols = `id, title, patient_name, therapy_name,
	therapist_id, therapist_name, room_id, room_name,
	session_date, start_minute, end_minute, duration_minutes, status,
	protocol, protocol_day, color, version_id, created_at, updated_at`

func (r *repoPG) scanSession(row pgx.Row) (*Session, error) {
	var (
		s          Session
		date       time.Time
		start, end int
		status     string
	)
	err := row.Scan(&s.ID, &s.Title, &s.PatientName, &s.TherapyName,
		&s.Therapist.ID, &s.Therapist.Name, &s.Room.ID, &s.Room.Name,
		&date, &start, &end, &s.DurationMinutes, &status,
		&s.Protocol, &s.Day, &s.Color, &s.VersionID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.Date = civil.DateOf(date)
	s.StartTime = Clock(start)
	s.EndTime = Clock(end)
	s.Status = Status(status)
	return &s, nil
}

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate primary key.
const uniqueViolation = "23505"

func (r *repoPG) insert(ctx context.Context, q queryable, s *Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.VersionID = 1
	err := q.QueryRow(ctx, `
		INSERT INTO treatment_session (id, title, patient_name, therapy_name,
			therapist_id, therapist_name, room_id, room_name,
			session_date, start_minute, end_minute, duration_minutes, status,
			protocol, protocol_day, color, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING created_at, updated_at`,
		s.ID, s.Title, s.PatientName, s.TherapyName,
		s.Therapist.ID, s.Therapist.Name, s.Room.ID, s.Room.Name,
		s.Date.In(time.UTC), s.StartTime.Minutes(), s.EndTime.Minutes(), s.DurationMinutes, string(s.Status),
		s.Protocol, s.Day, s.Color, s.VersionID).Scan(&s.CreatedAt, &s.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	return r.insert(ctx, r.pool, s)
}

func (r *repoPG) CreateBatch(ctx context.Context, sessions []*Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range sessions {
		if err := r.insert(ctx, tx, s); err != nil {
			return fmt.Errorf("insert session %q: %w", s.Title, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return r.scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM treatment_session WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Session) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE treatment_session SET title=$3, patient_name=$4, therapy_name=$5,
			therapist_id=$6, therapist_name=$7, room_id=$8, room_name=$9,
			session_date=$10, start_minute=$11, end_minute=$12, duration_minutes=$13, status=$14,
			protocol=$15, protocol_day=$16, color=$17,
			version_id=version_id+1, updated_at=NOW()
		WHERE id = $1 AND version_id = $2
		RETURNING version_id, created_at, updated_at`,
		s.ID, s.VersionID, s.Title, s.PatientName, s.TherapyName,
		s.Therapist.ID, s.Therapist.Name, s.Room.ID, s.Room.Name,
		s.Date.In(time.UTC), s.StartTime.Minutes(), s.EndTime.Minutes(), s.DurationMinutes, string(s.Status),
		s.Protocol, s.Day, s.Color).Scan(&s.VersionID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if qerr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM treatment_session WHERE id = $1)`, s.ID).Scan(&exists); qerr != nil {
			return qerr
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM treatment_session WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// patientNameSQL normalizes the column the way NormalizeName normalizes the argument.
const patientNameSQL = `btrim(regexp_replace(lower(patient_name), '\s+', ' ', 'g'))`

// listQuery builds the SELECT for f with positional arguments.
func listQuery(f Filter) (string, []interface{}) {
	query := `SELECT ` + sessionCols + ` FROM treatment_session WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(clause string, v interface{}) {
		query += fmt.Sprintf(clause, idx)
		args = append(args, v)
		idx++
	}
	if f.Date != nil {
		add(` AND session_date = $%d`, f.Date.In(time.UTC))
	}
	if f.From != nil {
		add(` AND session_date >= $%d`, f.From.In(time.UTC))
	}
	if f.To != nil {
		add(` AND session_date <= $%d`, f.To.In(time.UTC))
	}
	if f.TherapistID != nil {
		add(` AND therapist_id = $%d`, *f.TherapistID)
	}
	if f.RoomID != nil {
		add(` AND room_id = $%d`, *f.RoomID)
	}
	if f.PatientName != "" {
		add(` AND `+patientNameSQL+` = $%d`, NormalizeName(f.PatientName))
	}
	if f.Status != "" {
		add(` AND status = $%d`, string(f.Status))
	}
	query += ` ORDER BY session_date, start_minute, title, id`
	return query, args
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Session, error) {
	query, args := listQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

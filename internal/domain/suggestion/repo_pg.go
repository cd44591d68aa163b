package suggestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drrobo/assistant/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// NewTxPG returns a TxFunc that opens a transaction on pool. The pg
// repositories join it through the request context.
func NewTxPG(pool *pgxpool.Pool) TxFunc {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Analysis Repository ===========

type analysisRepoPG struct{ pool *pgxpool.Pool }

func NewAnalysisRepoPG(pool *pgxpool.Pool) AnalysisRepository { return &analysisRepoPG{pool: pool} }

const analysisCols = `id, session_id, transcript, patient, raw_payload, suggestion_count, created_at`

func (r *analysisRepoPG) scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	var patient, raw []byte
	if err := row.Scan(&a.ID, &a.SessionID, &a.Transcript, &patient, &raw, &a.SuggestionCount, &a.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if len(patient) > 0 {
		a.Patient = &PatientContext{}
		if err := json.Unmarshal(patient, a.Patient); err != nil {
			return nil, fmt.Errorf("decode patient: %w", err)
		}
	}
	if len(raw) > 0 {
		a.RawPayload = json.RawMessage(raw)
	}
	return &a, nil
}

func (r *analysisRepoPG) Create(ctx context.Context, a *Analysis) error {
	a.ID = uuid.New()
	var patient, raw []byte
	if a.Patient != nil {
		b, err := json.Marshal(a.Patient)
		if err != nil {
			return fmt.Errorf("encode patient: %w", err)
		}
		patient = b
	}
	if len(a.RawPayload) > 0 && json.Valid(a.RawPayload) {
		raw = a.RawPayload
	}
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO analysis (id, session_id, transcript, patient, raw_payload, suggestion_count)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		a.ID, a.SessionID, a.Transcript, patient, raw, a.SuggestionCount).Scan(&a.CreatedAt)
}

func (r *analysisRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	return r.scanAnalysis(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+analysisCols+` FROM analysis WHERE id = $1`, id))
}

func (r *analysisRepoPG) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*Analysis, int, error) {
	conn := connFor(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM analysis WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+analysisCols+` FROM analysis WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, sessionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*Analysis{}
	for rows.Next() {
		a, err := r.scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

// =========== Suggestion Repository ===========

type suggestionRepoPG struct{ pool *pgxpool.Pool }

func NewSuggestionRepoPG(pool *pgxpool.Pool) SuggestionRepository {
	return &suggestionRepoPG{pool: pool}
}

const suggestionCols = `id, session_id, analysis_id, position, type, title, content, original_content,
	confidence, status, created_at, updated_at`

func (r *suggestionRepoPG) scanSuggestion(row pgx.Row) (*Suggestion, error) {
	var s Suggestion
	var analysisID *uuid.UUID
	err := row.Scan(&s.ID, &s.SessionID, &analysisID, &s.Position, &s.Type, &s.Title, &s.Content, &s.OriginalContent,
		&s.Confidence, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if analysisID != nil {
		s.AnalysisID = *analysisID
	}
	return &s, nil
}

func (r *suggestionRepoPG) ReplaceForSession(ctx context.Context, sessionID string, items []*Suggestion) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		conn := connFor(ctx, r.pool)
		if _, err := conn.Exec(ctx, `DELETE FROM suggestion WHERE session_id = $1`, sessionID); err != nil {
			return fmt.Errorf("clear session suggestions: %w", err)
		}
		for _, s := range items {
			s.SessionID = sessionID
			var analysisID *uuid.UUID
			if s.AnalysisID != uuid.Nil {
				id := s.AnalysisID
				analysisID = &id
			}
			err := conn.QueryRow(ctx, `
				INSERT INTO suggestion (id, session_id, analysis_id, position, type, title, content,
					original_content, confidence, status)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
				RETURNING created_at, updated_at`,
				s.ID, s.SessionID, analysisID, s.Position, s.Type, s.Title, s.Content,
				s.OriginalContent, s.Confidence, s.Status).Scan(&s.CreatedAt, &s.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert suggestion %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (r *suggestionRepoPG) ListBySession(ctx context.Context, sessionID string) ([]*Suggestion, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `SELECT `+suggestionCols+` FROM suggestion WHERE session_id = $1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*Suggestion{}
	for rows.Next() {
		s, err := r.scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *suggestionRepoPG) GetByID(ctx context.Context, id string) (*Suggestion, error) {
	return r.scanSuggestion(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+suggestionCols+` FROM suggestion WHERE id = $1`, id))
}

func (r *suggestionRepoPG) Update(ctx context.Context, s *Suggestion) error {
	conn := connFor(ctx, r.pool)
	err := conn.QueryRow(ctx, `
		UPDATE suggestion SET content=$2, status=$3, updated_at=NOW()
		WHERE id = $1 AND status IN ('pending', 'modified')
		RETURNING updated_at`,
		s.ID, s.Content, s.Status).Scan(&s.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suggestion WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrInvalidTransition
	}
	return ErrNotFound
}

func (r *suggestionRepoPG) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM suggestion WHERE session_id = $1`, sessionID)
	return err
}

func (r *suggestionRepoPG) AddAction(ctx context.Context, a *SuggestionAction) error {
	a.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO suggestion_action (id, suggestion_id, action, clinician_id, previous_content, comment)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		a.ID, a.SuggestionID, a.Action, a.ClinicianID, a.PreviousContent, a.Comment).Scan(&a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrNotFound
	}
	return err
}

func (r *suggestionRepoPG) GetActions(ctx context.Context, suggestionID string) ([]*SuggestionAction, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT id, suggestion_id, action, clinician_id, previous_content, comment, created_at
		FROM suggestion_action WHERE suggestion_id = $1 ORDER BY created_at`, suggestionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*SuggestionAction{}
	for rows.Next() {
		var a SuggestionAction
		if err := rows.Scan(&a.ID, &a.SuggestionID, &a.Action, &a.ClinicianID, &a.PreviousContent, &a.Comment, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

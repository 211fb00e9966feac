package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/replytrainer/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS trainer_sessions (
    id                 UUID PRIMARY KEY,
    context            JSONB NOT NULL DEFAULT '{}'::jsonb,
    profile_image_urls TEXT[] NOT NULL DEFAULT '{}',
    chat_image_urls    TEXT[] NOT NULL DEFAULT '{}',
    captions           TEXT[] NOT NULL DEFAULT '{}',
    chat_texts         TEXT[] NOT NULL DEFAULT '{}',
    candidates         JSONB NOT NULL DEFAULT '[]'::jsonb,
    status             TEXT NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS trainer_feedback (
    id              UUID PRIMARY KEY,
    session_id      TEXT NOT NULL DEFAULT '',
    candidate_index INTEGER,
    candidate_text  TEXT NOT NULL DEFAULT '',
    rating          JSONB,
    tags            TEXT[] NOT NULL DEFAULT '{}',
    comment         TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS trainer_feedback_session_idx ON trainer_feedback (session_id);
`

// PostgresStore keeps sessions and feedback in Postgres via lib/pq
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Migrate creates the tables when they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate trainer tables: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendSession(ctx context.Context, sess models.TrainerSession) (string, error) {
	ctxJSON, err := json.Marshal(ensureMap(sess.Context))
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	candJSON, err := json.Marshal(ensureCandidates(sess.Candidates))
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}

	id := uuid.NewString()
	var returned string
	err = s.db.QueryRowContext(ctx, `
        INSERT INTO trainer_sessions (id, context, profile_image_urls, chat_image_urls, captions, chat_texts, candidates, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id
    `,
		id, string(ctxJSON),
		pq.Array(ensureSliceNotNil(sess.ProfileImageURLs)),
		pq.Array(ensureSliceNotNil(sess.ChatImageURLs)),
		pq.Array(ensureSliceNotNil(sess.Captions)),
		pq.Array(ensureSliceNotNil(sess.ChatTexts)),
		string(candJSON), string(sess.Status),
	).Scan(&returned)
	if err != nil {
		return "", fmt.Errorf("insert trainer session: %w", err)
	}
	return returned, nil
}

func (s *PostgresStore) AppendFeedback(ctx context.Context, f models.FeedbackRecord) (string, error) {
	ratingJSON, err := json.Marshal(f.Rating)
	if err != nil {
		return "", fmt.Errorf("encode rating: %w", err)
	}

	var index sql.NullInt64
	if f.CandidateIndex != nil {
		index = sql.NullInt64{Int64: int64(*f.CandidateIndex), Valid: true}
	}

	id := uuid.NewString()
	var returned string
	err = s.db.QueryRowContext(ctx, `
        INSERT INTO trainer_feedback (id, session_id, candidate_index, candidate_text, rating, tags, comment)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id
    `, id, f.SessionID, index, f.CandidateText, string(ratingJSON), pq.Array(ensureSliceNotNil(f.Tags)), f.Comment,
	).Scan(&returned)
	if err != nil {
		return "", fmt.Errorf("insert trainer feedback: %w", err)
	}
	return returned, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.TrainerSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var (
		out                                        models.TrainerSession
		ctxJSON, candJSON                          []byte
		profileURLs, chatURLs, captions, chatTexts pq.StringArray
		status                                     string
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, context, profile_image_urls, chat_image_urls, captions, chat_texts, candidates, status, created_at, updated_at
        FROM trainer_sessions WHERE id=$1
    `, id).Scan(&out.ID, &ctxJSON, &profileURLs, &chatURLs, &captions, &chatTexts, &candJSON, &status, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select trainer session: %w", err)
	}

	if err := json.Unmarshal(ctxJSON, &out.Context); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	if err := json.Unmarshal(candJSON, &out.Candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	out.ProfileImageURLs = []string(profileURLs)
	out.ChatImageURLs = []string(chatURLs)
	out.Captions = []string(captions)
	out.ChatTexts = []string(chatTexts)
	out.Status = models.SessionStatus(status)
	return &out, nil
}

func (s *PostgresStore) ListFeedback(ctx context.Context, sessionID string) ([]models.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, session_id, candidate_index, candidate_text, rating, tags, comment, created_at
        FROM trainer_feedback WHERE session_id=$1 ORDER BY created_at ASC
    `, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select trainer feedback: %w", err)
	}
	defer rows.Close()

	out := make([]models.FeedbackRecord, 0)
	for rows.Next() {
		var (
			f          models.FeedbackRecord
			index      sql.NullInt64
			ratingJSON []byte
			tags       pq.StringArray
		)
		if err := rows.Scan(&f.ID, &f.SessionID, &index, &f.CandidateText, &ratingJSON, &tags, &f.Comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		if index.Valid {
			v := int(index.Int64)
			f.CandidateIndex = &v
		}
		if len(ratingJSON) > 0 {
			if err := json.Unmarshal(ratingJSON, &f.Rating); err != nil {
				return nil, fmt.Errorf("decode rating: %w", err)
			}
		}
		f.Tags = ensureSliceNotNil([]string(tags))
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
        UPDATE trainer_sessions SET status=$1, updated_at=now() WHERE id=$2
    `, string(status), id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func ensureSliceNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ensureMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func ensureCandidates(c []models.Candidate) []models.Candidate {
	if c == nil {
		return []models.Candidate{}
	}
	return c
}

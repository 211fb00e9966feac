// Package sessions persists trainer sessions and the feedback left on them.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/replytrainer/pkg/models"
)

var ErrNotFound = errors.New("not found")

// SessionRecorder appends one session per pipeline run. It assigns the id and
// both timestamps.
type SessionRecorder interface {
	AppendSession(ctx context.Context, s models.TrainerSession) (string, error)
}

// FeedbackRecorder appends one feedback record
type FeedbackRecorder interface {
	AppendFeedback(ctx context.Context, f models.FeedbackRecord) (string, error)
}

// Store is the full persistence surface used by the server and job worker
type Store interface {
	SessionRecorder
	FeedbackRecorder
	GetSession(ctx context.Context, id string) (*models.TrainerSession, error)
	ListFeedback(ctx context.Context, sessionID string) ([]models.FeedbackRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// InMemoryStore is a threadsafe in-memory store for tests and local runs
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.TrainerSession
	order    []string
	feedback []models.FeedbackRecord
	now      func() time.Time
	newID    func() string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*models.TrainerSession),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *InMemoryStore) AppendSession(ctx context.Context, sess models.TrainerSession) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.ID = s.newID()
	sess.CreatedAt = s.now()
	sess.UpdatedAt = sess.CreatedAt
	s.sessions[sess.ID] = cloneSession(&sess)
	s.order = append(s.order, sess.ID)
	return sess.ID, nil
}

func (s *InMemoryStore) AppendFeedback(ctx context.Context, f models.FeedbackRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = s.newID()
	f.CreatedAt = s.now()
	f.Tags = append([]string{}, f.Tags...)
	s.feedback = append(s.feedback, f)
	return f.ID, nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, id string) (*models.TrainerSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(v), nil
}

func (s *InMemoryStore) ListFeedback(ctx context.Context, sessionID string) ([]models.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FeedbackRecord, 0)
	for _, f := range s.feedback {
		if f.SessionID == sessionID {
			f.Tags = append([]string{}, f.Tags...)
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	v.UpdatedAt = s.now()
	return nil
}

// SessionCount returns the number of recorded sessions
func (s *InMemoryStore) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// FeedbackCount returns the number of recorded feedback items
func (s *InMemoryStore) FeedbackCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feedback)
}

func cloneSession(in *models.TrainerSession) *models.TrainerSession {
	out := *in
	out.Context = cloneContext(in.Context)
	out.ProfileImageURLs = append([]string{}, in.ProfileImageURLs...)
	out.ChatImageURLs = append([]string{}, in.ChatImageURLs...)
	out.Captions = append([]string{}, in.Captions...)
	out.ChatTexts = append([]string{}, in.ChatTexts...)
	out.Candidates = append([]models.Candidate{}, in.Candidates...)
	return &out
}

// cloneContext deep copies through JSON so nested caller values are not shared
func cloneContext(in map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if len(in) == 0 {
		return out
	}
	raw, err := json.Marshal(in)
	if err != nil {
		for k, v := range in {
			out[k] = v
		}
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

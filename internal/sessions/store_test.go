package sessions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replytrainer/pkg/models"
)

func fixedStore() *InMemoryStore {
	s := NewInMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time { return base }
	s.newID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	return s
}

func TestInMemoryStore_AppendSessionAssignsIDAndTimestamps(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()

	id, err := s.AppendSession(ctx, models.TrainerSession{
		Context:          map[string]interface{}{"goal": "opening_line"},
		ProfileImageURLs: []string{"a.jpg"},
		Captions:         []string{"A person hiking on a mountain trail."},
		Candidates:       []models.Candidate{{Index: 0, Text: "hi"}},
		Status:           models.StatusAwaitingRating,
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	got, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.StatusAwaitingRating, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
	assert.Equal(t, "opening_line", got.Context["goal"])
	assert.Equal(t, 1, s.SessionCount())
}

func TestInMemoryStore_GetSessionReturnsCopy(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	id, err := s.AppendSession(ctx, models.TrainerSession{Candidates: []models.Candidate{{Index: 0, Text: "a"}}})
	require.NoError(t, err)

	got, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	got.Candidates[0].Text = "mutated"
	got.Context["x"] = 1

	again, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Candidates[0].Text)
	assert.NotContains(t, again.Context, "x")
}

func TestInMemoryStore_NotFound(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateStatus(context.Background(), "missing", models.StatusRated), ErrNotFound)
}

func TestInMemoryStore_FeedbackAndStatus(t *testing.T) {
	s := fixedStore()
	ctx := context.Background()
	sid, err := s.AppendSession(ctx, models.TrainerSession{Status: models.StatusAwaitingRating})
	require.NoError(t, err)

	idx := 2
	_, err = s.AppendFeedback(ctx, models.FeedbackRecord{SessionID: sid, CandidateIndex: &idx, CandidateText: "c", Rating: 5.0, Tags: []string{"funny"}})
	require.NoError(t, err)
	_, err = s.AppendFeedback(ctx, models.FeedbackRecord{SessionID: "other"})
	require.NoError(t, err)

	list, err := s.ListFeedback(ctx, sid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, *list[0].CandidateIndex)
	assert.Equal(t, []string{"funny"}, list[0].Tags)
	assert.Equal(t, 2, s.FeedbackCount())

	require.NoError(t, s.UpdateStatus(ctx, sid, models.StatusRated))
	got, err := s.GetSession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRated, got.Status)
}

func TestInMemoryStore_CancelledContext(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AppendSession(ctx, models.TrainerSession{})
	assert.Error(t, err)
	_, err = s.AppendFeedback(ctx, models.FeedbackRecord{})
	assert.Error(t, err)
}

func TestInMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	ids := make(chan string, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.AppendSession(context.Background(), models.TrainerSession{})
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}

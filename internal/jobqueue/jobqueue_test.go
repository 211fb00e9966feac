package jobqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replytrainer/internal/sessions"
	"github.com/replytrainer/pkg/models"
)

func TestSessionRatedWorker_MarksSessionRated(t *testing.T) {
	store := sessions.NewInMemoryStore()
	id, err := store.AppendSession(context.Background(), models.TrainerSession{Status: models.StatusAwaitingRating})
	require.NoError(t, err)

	w := NewSessionRatedWorker(store)
	err = w.Work(context.Background(), &river.Job[SessionRatedArgs]{Args: SessionRatedArgs{SessionID: id}})
	require.NoError(t, err)

	got, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRated, got.Status)
}

func TestSessionRatedWorker_UnknownSessionCancels(t *testing.T) {
	w := NewSessionRatedWorker(sessions.NewInMemoryStore())

	err := w.Work(context.Background(), &river.Job[SessionRatedArgs]{Args: SessionRatedArgs{SessionID: "nope"}})
	require.Error(t, err)
}

type brokenUpdater struct{}

func (brokenUpdater) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return errors.New("connection reset")
}

func TestSessionRatedWorker_StoreErrorIsRetried(t *testing.T) {
	w := NewSessionRatedWorker(brokenUpdater{})

	err := w.Work(context.Background(), &river.Job[SessionRatedArgs]{Args: SessionRatedArgs{SessionID: "s"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestConfig(t *testing.T) {
	assert.Equal(t, "session_rated", SessionRatedArgs{}.Kind())
	assert.Equal(t, 5, SessionRatedArgs{}.InsertOpts().MaxAttempts)

	c := ConfigFromWorkers(12)
	assert.Equal(t, 12, c.MaxWorkers)
	assert.Equal(t, 12, c.RiverQueueConfig()[river.QueueDefault].MaxWorkers)
	assert.Equal(t, DefaultConfig().MaxWorkers, ConfigFromWorkers(0).MaxWorkers)
}

package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/replytrainer/internal/sessions"
	"github.com/replytrainer/pkg/models"
)

// SessionRatedArgs moves a session out of awaiting_rating once feedback exists
type SessionRatedArgs struct {
	SessionID string `json:"session_id"`
}

// Kind returns the job kind identifier
func (SessionRatedArgs) Kind() string {
	return "session_rated"
}

// InsertOpts returns the default insert options for this job kind
func (SessionRatedArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: DefaultConfig().MaxAttempts}
}

// StatusUpdater is the slice of the session store the worker needs
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
}

// SessionRatedWorker applies the status transition
type SessionRatedWorker struct {
	river.WorkerDefaults[SessionRatedArgs]
	store StatusUpdater
}

// NewSessionRatedWorker creates the worker
func NewSessionRatedWorker(store StatusUpdater) *SessionRatedWorker {
	return &SessionRatedWorker{store: store}
}

// Work processes one session_rated job. Unknown sessions cancel the job
// instead of retrying it.
func (w *SessionRatedWorker) Work(ctx context.Context, job *river.Job[SessionRatedArgs]) error {
	sessionID := job.Args.SessionID
	err := w.store.UpdateStatus(ctx, sessionID, models.StatusRated)
	if errors.Is(err, sessions.ErrNotFound) {
		log.Warn().Str("session_id", sessionID).Msg("Rated session not found, cancelling job")
		return river.JobCancel(err)
	}
	if err != nil {
		return fmt.Errorf("mark session %s rated: %w", sessionID, err)
	}

	log.Debug().Str("session_id", sessionID).Msg("Session marked rated")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config Config
}

// New creates a job queue on an existing pool. The River schema must already
// be migrated.
func New(pool *pgxpool.Pool, store StatusUpdater, config Config) (*JobQueue, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewSessionRatedWorker(store))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  config.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// SessionRated enqueues the status transition for sessionID
func (jq *JobQueue) SessionRated(ctx context.Context, sessionID string) error {
	_, err := jq.client.Insert(ctx, SessionRatedArgs{SessionID: sessionID}, &river.InsertOpts{
		MaxAttempts: jq.config.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to queue session_rated job: %w", err)
	}
	return nil
}

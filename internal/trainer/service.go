// Package trainer orchestrates candidate generation and feedback capture.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/replytrainer/internal/prompts"
	"github.com/replytrainer/internal/sessions"
	"github.com/replytrainer/pkg/models"
)

var (
	// ErrCapability marks failures of the vision or generation model calls
	ErrCapability = errors.New("model capability failure")
	// ErrPersistence marks failures to record a session or feedback
	ErrPersistence = errors.New("persistence failure")
)

// Extractor is the vision stage
type Extractor interface {
	Extract(ctx context.Context, profileURLs, chatURLs []string) (models.ExtractionResult, error)
}

// Generator is the candidate generation stage
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sanitizer turns raw generator output into a well-formed candidate list
type Sanitizer interface {
	Process(raw string) []models.Candidate
}

// RatingNotifier is told when feedback arrives for a session
type RatingNotifier interface {
	SessionRated(ctx context.Context, sessionID string) error
}

// GenerateResult is returned to the caller of GenerateCandidates
type GenerateResult struct {
	SessionID  string             `json:"sessionId"`
	Captions   []string           `json:"captions"`
	Candidates []models.Candidate `json:"candidates"`
}

// FeedbackResult is returned to the caller of SaveTrainerFeedback
type FeedbackResult struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// Service represents the trainer orchestration service
type Service struct {
	extractor Extractor
	generator Generator
	sanitizer Sanitizer
	sessions  sessions.SessionRecorder
	feedback  sessions.FeedbackRecorder
	notifier  RatingNotifier
}

// Option customizes a Service
type Option func(*Service)

// WithRatingNotifier registers a notifier called after feedback is stored
func WithRatingNotifier(n RatingNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a trainer service from its collaborators
func NewService(
	extractor Extractor,
	generator Generator,
	sanitizer Sanitizer,
	sessionRecorder sessions.SessionRecorder,
	feedbackRecorder sessions.FeedbackRecorder,
	opts ...Option,
) *Service {
	s := &Service{
		extractor: extractor,
		generator: generator,
		sanitizer: sanitizer,
		sessions:  sessionRecorder,
		feedback:  feedbackRecorder,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCandidates runs the full pipeline for one request and records the
// session. It fails only on capability or persistence errors.
func (s *Service) GenerateCandidates(ctx context.Context, req models.GenerationRequest) (*GenerateResult, error) {
	start := time.Now()
	req = req.Normalized()

	extraction, err := s.extractor.Extract(ctx, req.ProfileImageURLs, req.ChatImageURLs)
	if err != nil {
		return nil, fmt.Errorf("%w: vision extraction: %w", ErrCapability, err)
	}

	prompt, err := prompts.BuildCandidatePrompt(extraction, req.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble prompt: %w", err)
	}

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapability, err)
	}

	candidates := s.sanitizer.Process(raw)

	sessionID, err := s.sessions.AppendSession(ctx, models.TrainerSession{
		Context:          req.Context,
		ProfileImageURLs: req.ProfileImageURLs,
		ChatImageURLs:    req.ChatImageURLs,
		Captions:         extraction.Captions,
		ChatTexts:        extraction.ChatTexts,
		Candidates:       candidates,
		Status:           models.StatusAwaitingRating,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: record session: %w", ErrPersistence, err)
	}

	log.Info().
		Str("session_id", sessionID).
		Int("profile_images", len(req.ProfileImageURLs)).
		Int("chat_images", len(req.ChatImageURLs)).
		Int("candidates", len(candidates)).
		Dur("elapsed", time.Since(start)).
		Msg("Generated candidates")

	return &GenerateResult{
		SessionID:  sessionID,
		Captions:   extraction.Captions,
		Candidates: candidates,
	}, nil
}

// SaveTrainerFeedback stores one record per item. An empty batch is a no-op.
func (s *Service) SaveTrainerFeedback(ctx context.Context, sessionID *string, items []FeedbackItem) (*FeedbackResult, error) {
	if len(items) == 0 {
		return &FeedbackResult{OK: true, Count: 0}, nil
	}

	sid := ""
	if sessionID != nil {
		sid = *sessionID
	}

	for i, item := range items {
		if _, err := s.feedback.AppendFeedback(ctx, item.Record(sid)); err != nil {
			return nil, fmt.Errorf("%w: record feedback item %d: %w", ErrPersistence, i, err)
		}
	}

	if s.notifier != nil && sid != "" {
		if err := s.notifier.SessionRated(ctx, sid); err != nil {
			log.Warn().Err(err).Str("session_id", sid).Msg("Failed to schedule session status update")
		}
	}

	log.Info().Str("session_id", sid).Int("count", len(items)).Msg("Saved trainer feedback")
	return &FeedbackResult{OK: true, Count: len(items)}, nil
}

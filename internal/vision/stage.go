// Package vision runs the per-image extraction requests of a pipeline run.
package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/replytrainer/internal/prompts"
	"github.com/replytrainer/pkg/models"
)

// NoCaptionSentinel stands in for a profile caption the model could not produce
const NoCaptionSentinel = "No useful profile caption."

// FailurePolicy decides what a failed sub-request does to the stage
type FailurePolicy string

const (
	// FailFast rejects the whole stage on the first failed sub-request
	FailFast FailurePolicy = "fail_fast"
	// BestEffort substitutes the per-kind placeholder for a failed sub-request
	BestEffort FailurePolicy = "best_effort"
)

// ParseFailurePolicy maps a config value to a policy. Empty means FailFast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailFast:
		return FailFast, nil
	case BestEffort:
		return BestEffort, nil
	default:
		return "", fmt.Errorf("unknown vision failure policy %q", s)
	}
}

// ImageDescriber is the vision capability: one image plus an instruction in,
// free text out.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, instruction, imageURL string, temperature float64) (string, error)
}

// Config holds the stage settings
type Config struct {
	CaptionTemperature    float64
	TranscriptTemperature float64
	Policy                FailurePolicy
	// MaxConcurrency caps simultaneous sub-requests; 0 means no cap
	MaxConcurrency int
}

// DefaultConfig returns the stage defaults
func DefaultConfig() Config {
	return Config{
		CaptionTemperature:    0.4,
		TranscriptTemperature: 0,
		Policy:                FailFast,
	}
}

// Stage extracts captions and chat text from images
type Stage struct {
	describer ImageDescriber
	config    Config
}

// NewStage creates a vision stage
func NewStage(describer ImageDescriber, config Config) *Stage {
	if config.Policy == "" {
		config.Policy = FailFast
	}
	return &Stage{describer: describer, config: config}
}

// Extract issues one request per image concurrently and waits for all of
// them. Captions stay index-aligned with profileURLs; empty transcriptions
// are dropped.
func (s *Stage) Extract(ctx context.Context, profileURLs, chatURLs []string) (models.ExtractionResult, error) {
	start := time.Now()
	captions := make([]string, len(profileURLs))
	transcripts := make([]string, len(chatURLs))

	var g *errgroup.Group
	gctx := ctx
	if s.config.Policy == FailFast {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if s.config.MaxConcurrency > 0 {
		g.SetLimit(s.config.MaxConcurrency)
	}

	for i, url := range profileURLs {
		i, url := i, url
		g.Go(func() error {
			text, err := s.describer.DescribeImage(gctx, prompts.CaptionInstruction, url, s.config.CaptionTemperature)
			if err != nil {
				if s.config.Policy == FailFast {
					return fmt.Errorf("caption profile image %d: %w", i, err)
				}
				log.Warn().Err(err).Int("image", i).Msg("Caption failed, using placeholder")
				text = ""
			}
			captions[i] = captionOrSentinel(text)
			return nil
		})
	}

	for i, url := range chatURLs {
		i, url := i, url
		g.Go(func() error {
			text, err := s.describer.DescribeImage(gctx, prompts.TranscriptInstruction, url, s.config.TranscriptTemperature)
			if err != nil {
				if s.config.Policy == FailFast {
					return fmt.Errorf("transcribe chat image %d: %w", i, err)
				}
				log.Warn().Err(err).Int("image", i).Msg("Transcription failed, dropping it")
				text = ""
			}
			transcripts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return models.ExtractionResult{}, err
	}

	result := models.ExtractionResult{
		Captions:  captions,
		ChatTexts: make([]string, 0, len(transcripts)),
	}
	for _, text := range transcripts {
		if strings.TrimSpace(text) != "" {
			result.ChatTexts = append(result.ChatTexts, text)
		}
	}

	log.Debug().
		Int("profile_images", len(profileURLs)).
		Int("chat_images", len(chatURLs)).
		Int("chat_texts", len(result.ChatTexts)).
		Dur("elapsed", time.Since(start)).
		Msg("Vision extraction completed")
	return result, nil
}

func captionOrSentinel(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return NoCaptionSentinel
	}
	return text
}

// Package generation issues the single structured-output request of a run.
package generation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/replytrainer/internal/llm"
)

// DefaultTemperature favours variety over determinism
const DefaultTemperature = 0.9

// JSONGenerator is the text-generation capability in structured-output mode
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Stage sends the assembled prompt and hands back the raw content
type Stage struct {
	generator   JSONGenerator
	temperature float64
}

// NewStage creates a generation stage
func NewStage(generator JSONGenerator, temperature float64) *Stage {
	return &Stage{generator: generator, temperature: temperature}
}

// Generate makes exactly one call. The content is returned unparsed; an empty
// string means the model returned no content.
func (s *Stage) Generate(ctx context.Context, prompt string) (string, error) {
	log.Debug().
		Int("prompt_bytes", len(prompt)).
		Float64("temperature", s.temperature).
		Msg("Requesting candidates")

	content, err := s.generator.GenerateJSON(ctx, prompt, s.temperature)
	if err != nil {
		return "", fmt.Errorf("candidate generation: %w", err)
	}

	log.Debug().
		Str("content", llm.TruncateForLog(content, 300)).
		Msg("Generator responded")
	return content, nil
}

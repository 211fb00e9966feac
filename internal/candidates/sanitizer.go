// Package candidates turns raw structured model output into a candidate list
// that is always well formed.
package candidates

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/replytrainer/internal/llm"
	"github.com/replytrainer/pkg/models"
)

const (
	// GeneratorFallbackText replaces the whole list when nothing usable was parsed
	GeneratorFallbackText = "Something went wrong with the generator. Try again."
	// ItemFallbackText replaces a single candidate whose text is empty after cleanup
	ItemFallbackText = "Something went wrong, try generating again."
	// ExpectedCount is the number of candidates the generation prompt asks for
	ExpectedCount = 3
)

// CountPolicy controls how the sanitizer treats lists that are not ExpectedCount long
type CountPolicy string

const (
	// CountPermissive keeps whatever non-empty length the model returned
	CountPermissive CountPolicy = "permissive"
	// CountExact truncates or pads the output to ExpectedCount items
	CountExact CountPolicy = "exact"
)

// Options configures a Sanitizer
type Options struct {
	// RepairJSON runs fence extraction and JSON repair before parsing
	RepairJSON  bool
	CountPolicy CountPolicy
}

// ParsedCandidate is the result of decoding one element of the candidates
// array. It is either Valid or Invalid.
type ParsedCandidate interface {
	isParsedCandidate()
}

// Valid is an element that decoded as an object. Text may still be empty.
type Valid struct {
	Index    int
	HasIndex bool
	Text     string
}

// Invalid is an element that is not an object at all.
type Invalid struct {
	Raw string
}

func (Valid) isParsedCandidate()   {}
func (Invalid) isParsedCandidate() {}

var dashReplacer = strings.NewReplacer("-", "", "–", "", "—", "")

// StripDashes removes hyphens, en dashes and em dashes and trims the result.
// Surrounding spaces are kept, so "a - b" becomes "a  b".
func StripDashes(s string) string {
	return strings.TrimSpace(dashReplacer.Replace(s))
}

// Sanitize converts one parsed element into a Candidate. It never fails.
func Sanitize(p ParsedCandidate, position int) models.Candidate {
	out := models.Candidate{Index: position, Text: ItemFallbackText}

	v, ok := p.(Valid)
	if !ok {
		return out
	}
	if v.HasIndex {
		out.Index = v.Index
	}
	if text := StripDashes(v.Text); text != "" {
		out.Text = text
	}
	return out
}

// Parse decodes raw model content into tagged elements. Any structural problem
// with the document yields an empty slice.
func Parse(raw string) []ParsedCandidate {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(doc["candidates"], &items); err != nil {
		return nil
	}

	parsed := make([]ParsedCandidate, 0, len(items))
	for _, item := range items {
		parsed = append(parsed, parseItem(item))
	}
	return parsed
}

func parseItem(item json.RawMessage) ParsedCandidate {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return Invalid{Raw: string(item)}
	}

	var v Valid
	if rawText, ok := fields["text"]; ok {
		var text string
		if json.Unmarshal(rawText, &text) == nil {
			v.Text = text
		}
	}
	if rawIndex, ok := fields["index"]; ok {
		v.Index, v.HasIndex = decodeIndex(rawIndex)
	}
	return v
}

// decodeIndex accepts only non-negative integral JSON numbers
func decodeIndex(raw json.RawMessage) (int, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// Sanitizer applies Parse, Sanitize and the fallback policy to raw content
type Sanitizer struct {
	opts Options
}

// NewSanitizer creates a sanitizer. An unset count policy means permissive.
func NewSanitizer(opts Options) *Sanitizer {
	if opts.CountPolicy == "" {
		opts.CountPolicy = CountPermissive
	}
	return &Sanitizer{opts: opts}
}

// Process returns at least one candidate, each with non-empty dash-free text.
func (s *Sanitizer) Process(raw string) []models.Candidate {
	content := raw
	if s.opts.RepairJSON {
		repaired, stats, err := llm.RepairJSON(raw)
		if err == nil {
			content = repaired
		}
		if stats.WasRepaired {
			log.Debug().
				Strs("strategies", stats.RepairStrategies).
				Bool("success", err == nil).
				Msg("Repaired generator output")
		}
	}

	parsed := Parse(content)

	var out []models.Candidate
	if len(parsed) == 0 {
		log.Warn().
			Str("content", llm.TruncateForLog(raw, 200)).
			Msg("Generator output had no usable candidates, using fallback")
		out = []models.Candidate{{Index: 0, Text: GeneratorFallbackText}}
	} else {
		out = make([]models.Candidate, 0, len(parsed))
		for i, p := range parsed {
			out = append(out, Sanitize(p, i))
		}
	}

	if s.opts.CountPolicy == CountExact {
		out = enforceCount(out)
	}
	return out
}

func enforceCount(in []models.Candidate) []models.Candidate {
	if len(in) >= ExpectedCount {
		return in[:ExpectedCount]
	}
	out := append([]models.Candidate{}, in...)
	for i := len(in); i < ExpectedCount; i++ {
		out = append(out, models.Candidate{Index: i, Text: ItemFallbackText})
	}
	return out
}

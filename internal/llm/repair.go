package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

// RepairStats tracks what RepairJSON had to do to a model response
type RepairStats struct {
	OriginalBytes    int           `json:"original_bytes"`
	RepairedBytes    int           `json:"repaired_bytes"`
	ErrorsFixed      int           `json:"errors_fixed"`
	RepairTime       time.Duration `json:"repair_time"`
	RepairStrategies []string      `json:"repair_strategies"`
	WasRepaired      bool          `json:"was_repaired"`
}

// RepairJSON attempts to turn a structured-output response into valid JSON.
// Strategies run in order: code fence extraction, trailing comma removal,
// closing unterminated objects/arrays, then the jsonrepair library.
func RepairJSON(raw string) (string, RepairStats, error) {
	start := time.Now()
	stats := RepairStats{OriginalBytes: len(raw)}

	finish := func(out string, err error) (string, RepairStats, error) {
		stats.RepairedBytes = len(out)
		stats.RepairTime = time.Since(start)
		return out, stats, err
	}

	if json.Valid([]byte(raw)) {
		return finish(raw, nil)
	}

	stats.WasRepaired = true
	repaired := raw

	if extracted := ExtractJSON(repaired); extracted != "" && extracted != strings.TrimSpace(repaired) {
		repaired = extracted
		stats.RepairStrategies = append(stats.RepairStrategies, "extract")
		stats.ErrorsFixed++
	}

	if strings.Contains(repaired, ",") {
		if fixed := removeTrailingCommas(repaired); fixed != repaired {
			repaired = fixed
			stats.RepairStrategies = append(stats.RepairStrategies, "trailing_commas")
			stats.ErrorsFixed++
		}
	}

	if completed := completeJSON(repaired); completed != repaired {
		repaired = completed
		stats.RepairStrategies = append(stats.RepairStrategies, "completion")
		stats.ErrorsFixed++
	}

	if json.Valid([]byte(repaired)) {
		return finish(repaired, nil)
	}

	libraryRepaired, err := jsonrepair.JSONRepair(repaired)
	if err == nil && json.Valid([]byte(libraryRepaired)) {
		stats.RepairStrategies = append(stats.RepairStrategies, "jsonrepair_library")
		stats.ErrorsFixed++
		return finish(libraryRepaired, nil)
	}

	log.Debug().
		Strs("strategies", stats.RepairStrategies).
		Str("content", TruncateForLog(repaired, 200)).
		Msg("JSON repair failed")
	return finish(repaired, fmt.Errorf("JSON repair failed after %d strategies", len(stats.RepairStrategies)))
}

// completeJSON appends the closing braces and brackets left open at the end of
// the input. Characters inside string literals are ignored.
// removeTrailingCommas drops commas that directly precede a closing brace or
// bracket. Commas inside string literals are left alone.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func completeJSON(s string) string {
	s = strings.TrimSpace(s)
	var stack []byte
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// ExtractJSON pulls the JSON payload out of a response that may wrap it in
// prose or a fenced code block. Returns "" when no object or array is present.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	if strings.Contains(raw, "```") {
		var body []string
		inBlock := false
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				if inBlock {
					break
				}
				inBlock = true
				continue
			}
			if inBlock {
				body = append(body, line)
			}
		}
		if len(body) > 0 {
			return strings.TrimSpace(strings.Join(body, "\n"))
		}
	}

	startIdx := strings.IndexAny(raw, "{[")
	if startIdx == -1 {
		return ""
	}

	open := raw[startIdx]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	for i := startIdx; i < len(raw); i++ {
		switch raw[i] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return raw[startIdx : i+1]
			}
		}
	}

	return raw[startIdx:]
}

// TruncateForLog shortens text for log fields
func TruncateForLog(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

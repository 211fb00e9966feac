package prompts

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder represents a single {{VAR:...}} occurrence with parsed options.
type Placeholder struct {
	Raw     string
	Name    string
	Options map[string]string // e.g. default
}

var (
	// {{VAR:name|key=value}}; group 1 is the name, group 2 the options
	varPattern = regexp.MustCompile(`\{\{VAR:([a-zA-Z0-9_\-]+)((?:\|[^}]+)?)}}`)
	optPattern = regexp.MustCompile(`\|([^=|]+)=([^|]+)`)
)

// ParsePlaceholders returns all placeholder occurrences in order of appearance.
func ParsePlaceholders(body string) []Placeholder {
	matches := varPattern.FindAllStringSubmatch(body, -1)
	out := make([]Placeholder, 0, len(matches))
	for _, m := range matches {
		opts := map[string]string{}
		for _, seg := range optPattern.FindAllStringSubmatch(m[2], -1) {
			val := strings.TrimSpace(seg[2])
			if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
				val = val[1 : len(val)-1]
			}
			opts[strings.ToLower(strings.TrimSpace(seg[1]))] = val
		}
		out = append(out, Placeholder{Raw: m[0], Name: m[1], Options: opts})
	}
	return out
}

// RenderVars substitutes every placeholder in body. A placeholder with no
// value and no default is an error.
func RenderVars(body string, vars map[string]string) (string, error) {
	var missing []string
	pairs := make([]string, 0, 4)
	seen := map[string]bool{}

	for _, ph := range ParsePlaceholders(body) {
		if seen[ph.Raw] {
			continue
		}
		seen[ph.Raw] = true

		val, ok := vars[ph.Name]
		if !ok {
			def, hasDefault := ph.Options["default"]
			if !hasDefault {
				missing = append(missing, ph.Name)
				continue
			}
			val = def
		}
		pairs = append(pairs, ph.Raw, val)
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved prompt variables: %s", strings.Join(missing, ", "))
	}
	return strings.NewReplacer(pairs...).Replace(body), nil
}

package candidates

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replytrainer/pkg/models"
)

func assertWellFormed(t *testing.T, out []models.Candidate) {
	t.Helper()
	require.NotEmpty(t, out)
	for _, c := range out {
		assert.NotEmpty(t, c.Text)
		assert.False(t, strings.ContainsAny(c.Text, "-–—"), "dash in %q", c.Text)
		assert.GreaterOrEqual(t, c.Index, 0)
	}
}

func TestProcess_MalformedInputsFallBack(t *testing.T) {
	inputs := map[string]string{
		"truncated":          `{"candidates":[{"index":0,"text":"Hey`,
		"empty string":       ``,
		"plain text":         `Sure, here are three ideas`,
		"top level array":    `[{"index":0,"text":"hi"}]`,
		"candidates object":  `{"candidates":{"index":0,"text":"hi"}}`,
		"candidates string":  `{"candidates":"hi"}`,
		"candidates null":    `{"candidates":null}`,
		"missing candidates": `{"suggestions":[{"index":0,"text":"hi"}]}`,
		"empty array":        `{"candidates":[]}`,
		"null document":      `null`,
	}

	s := NewSanitizer(Options{})
	want := []models.Candidate{{Index: 0, Text: GeneratorFallbackText}}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			out := s.Process(raw)
			assertWellFormed(t, out)
			if diff := cmp.Diff(want, out); diff != "" {
				t.Errorf("unexpected candidates (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcess_ValidOutputPreservesOrder(t *testing.T) {
	raw := `{"candidates":[
		{"index":0,"text":"Hiking life - nice views"},
		{"index":1,"text":"  ---  "},
		{"index":2,"text":"What trail was that — the north one?"}
	]}`

	out := NewSanitizer(Options{}).Process(raw)

	want := []models.Candidate{
		{Index: 0, Text: "Hiking life  nice views"},
		{Index: 1, Text: ItemFallbackText},
		{Index: 2, Text: "What trail was that  the north one?"},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("unexpected candidates (-want +got):\n%s", diff)
	}
	assertWellFormed(t, out)
}

func TestProcess_IndexFallsBackToPosition(t *testing.T) {
	raw := `{"candidates":[
		{"text":"no index"},
		{"index":"7","text":"string index"},
		{"index":1.5,"text":"fractional"},
		{"index":-2,"text":"negative"},
		{"index":9,"text":"explicit"},
		42,
		{"index":3}
	]}`

	out := NewSanitizer(Options{}).Process(raw)

	want := []models.Candidate{
		{Index: 0, Text: "no index"},
		{Index: 1, Text: "string index"},
		{Index: 2, Text: "fractional"},
		{Index: 3, Text: "negative"},
		{Index: 9, Text: "explicit"},
		{Index: 5, Text: ItemFallbackText},
		{Index: 3, Text: ItemFallbackText},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("unexpected candidates (-want +got):\n%s", diff)
	}
}

func TestProcess_NonStringTextUsesFallback(t *testing.T) {
	out := NewSanitizer(Options{}).Process(`{"candidates":[{"index":0,"text":12}]}`)
	assert.Equal(t, []models.Candidate{{Index: 0, Text: ItemFallbackText}}, out)
}

func TestStripDashes_Idempotent(t *testing.T) {
	inputs := []string{
		"Hiking life - nice views",
		"en – dash and em — dash",
		"--leading and trailing--",
		"no dashes at all",
		"   ",
		"",
	}

	for _, in := range inputs {
		once := StripDashes(in)
		twice := StripDashes(once)
		assert.Equal(t, once, twice, "input %q", in)
		assert.False(t, strings.ContainsAny(once, "-–—"))
	}
}

func TestStripDashes_RemovesDashCharacters(t *testing.T) {
	assert.Equal(t, "Hiking life  nice views", StripDashes("Hiking life - nice views"))
	assert.Equal(t, "wellknown", StripDashes("well-known"))
	assert.Equal(t, "abcd", StripDashes("a—b–c-d"))
	assert.Equal(t, "", StripDashes(" — "))
}

func TestSanitize_IsTotal(t *testing.T) {
	assert.Equal(t, models.Candidate{Index: 4, Text: ItemFallbackText}, Sanitize(Invalid{Raw: "42"}, 4))
	assert.Equal(t, models.Candidate{Index: 1, Text: ItemFallbackText}, Sanitize(Valid{}, 1))
	assert.Equal(t, models.Candidate{Index: 0, Text: "hi"}, Sanitize(Valid{Index: 0, HasIndex: true, Text: " hi "}, 6))
	assert.Equal(t, models.Candidate{Index: 2, Text: ItemFallbackText}, Sanitize(nil, 2))
}

func TestProcess_ExactCountPolicy(t *testing.T) {
	s := NewSanitizer(Options{CountPolicy: CountExact})

	four := s.Process(`{"candidates":[{"text":"a"},{"text":"b"},{"text":"c"},{"text":"d"}]}`)
	assert.Len(t, four, ExpectedCount)
	assert.Equal(t, "c", four[2].Text)

	one := s.Process(`{"candidates":[{"index":0,"text":"only"}]}`)
	want := []models.Candidate{
		{Index: 0, Text: "only"},
		{Index: 1, Text: ItemFallbackText},
		{Index: 2, Text: ItemFallbackText},
	}
	if diff := cmp.Diff(want, one); diff != "" {
		t.Errorf("unexpected candidates (-want +got):\n%s", diff)
	}

	empty := s.Process(`{"candidates":[]}`)
	require.Len(t, empty, ExpectedCount)
	assert.Equal(t, GeneratorFallbackText, empty[0].Text)
}

func TestProcess_RepairRecoversFencedOutput(t *testing.T) {
	raw := "```json\n{\"candidates\":[{\"index\":0,\"text\":\"Nice shot\"},]}\n```"

	strict := NewSanitizer(Options{}).Process(raw)
	assert.Equal(t, GeneratorFallbackText, strict[0].Text)

	repaired := NewSanitizer(Options{RepairJSON: true}).Process(raw)
	assert.Equal(t, []models.Candidate{{Index: 0, Text: "Nice shot"}}, repaired)
}

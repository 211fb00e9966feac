package vision

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replytrainer/internal/prompts"
)

type fakeDescriber struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	block   map[string]bool
	calls   []call

	inFlight    int32
	maxInFlight int32
}

type call struct {
	instruction string
	url         string
	temperature float64
}

func (f *fakeDescriber) DescribeImage(ctx context.Context, instruction, imageURL string, temperature float64) (string, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&f.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&f.maxInFlight, cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{instruction, imageURL, temperature})
	f.mu.Unlock()

	if f.block[imageURL] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := f.errs[imageURL]; err != nil {
		return "", err
	}
	time.Sleep(5 * time.Millisecond)
	return f.replies[imageURL], nil
}

func TestExtract_AlignsCaptionsAndDropsEmptyChat(t *testing.T) {
	d := &fakeDescriber{replies: map[string]string{
		"p1.jpg": "A person hiking on a mountain trail.",
		"p2.jpg": "   ",
		"p3.jpg": "A guitar on a stage.",
		"c1.png": "hey!",
		"c2.png": "",
		"c3.png": "see you 🙂",
	}}
	stage := NewStage(d, DefaultConfig())

	out, err := stage.Extract(context.Background(), []string{"p1.jpg", "p2.jpg", "p3.jpg"}, []string{"c1.png", "c2.png", "c3.png"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A person hiking on a mountain trail.", NoCaptionSentinel, "A guitar on a stage."}, out.Captions)
	assert.Equal(t, []string{"hey!", "see you 🙂"}, out.ChatTexts)
}

func TestExtract_UsesInstructionAndTemperaturePerKind(t *testing.T) {
	d := &fakeDescriber{replies: map[string]string{"p.jpg": "x", "c.png": "y"}}
	stage := NewStage(d, Config{CaptionTemperature: 0.3, TranscriptTemperature: 0})

	_, err := stage.Extract(context.Background(), []string{"p.jpg"}, []string{"c.png"})
	require.NoError(t, err)

	require.Len(t, d.calls, 2)
	for _, c := range d.calls {
		switch c.url {
		case "p.jpg":
			assert.Equal(t, prompts.CaptionInstruction, c.instruction)
			assert.Equal(t, 0.3, c.temperature)
		case "c.png":
			assert.Equal(t, prompts.TranscriptInstruction, c.instruction)
			assert.Equal(t, 0.0, c.temperature)
		}
	}
}

func TestExtract_FailFastRejectsWholeStage(t *testing.T) {
	boom := errors.New("vision unavailable")
	d := &fakeDescriber{
		replies: map[string]string{"p1.jpg": "fine"},
		errs:    map[string]error{"p2.jpg": boom},
		block:   map[string]bool{"c1.png": true},
	}
	stage := NewStage(d, Config{Policy: FailFast})

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = stage.Extract(context.Background(), []string{"p1.jpg", "p2.jpg"}, []string{"c1.png"})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stage did not cancel the stalled sub-request")
	}

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestExtract_BestEffortUsesPlaceholders(t *testing.T) {
	boom := errors.New("vision unavailable")
	d := &fakeDescriber{
		replies: map[string]string{"p1.jpg": "fine", "c2.png": "hello"},
		errs:    map[string]error{"p2.jpg": boom, "c1.png": boom},
	}
	stage := NewStage(d, Config{Policy: BestEffort})

	out, err := stage.Extract(context.Background(), []string{"p1.jpg", "p2.jpg"}, []string{"c1.png", "c2.png"})
	require.NoError(t, err)

	assert.Equal(t, []string{"fine", NoCaptionSentinel}, out.Captions)
	assert.Equal(t, []string{"hello"}, out.ChatTexts)
}

func TestExtract_NoImages(t *testing.T) {
	stage := NewStage(&fakeDescriber{}, DefaultConfig())

	out, err := stage.Extract(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out.Captions)
	assert.Empty(t, out.ChatTexts)
}

func TestExtract_MaxConcurrency(t *testing.T) {
	d := &fakeDescriber{replies: map[string]string{}}
	urls := []string{"a", "b", "c", "d", "e", "f"}
	stage := NewStage(d, Config{MaxConcurrency: 2})

	out, err := stage.Extract(context.Background(), urls, nil)
	require.NoError(t, err)
	assert.Len(t, out.Captions, len(urls))
	assert.LessOrEqual(t, atomic.LoadInt32(&d.maxInFlight), int32(2))
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailFast, p)

	p, err = ParseFailurePolicy("Best_Effort")
	require.NoError(t, err)
	assert.Equal(t, BestEffort, p)

	_, err = ParseFailurePolicy("sometimes")
	assert.Error(t, err)
}

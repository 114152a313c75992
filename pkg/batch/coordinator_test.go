package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/guided-translator/internal/test"
	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

type funcTranslator func(ctx context.Context, c chunk.Chunk, m *glossary.Matcher, onStatus translate.StatusFunc) (*translate.TranslatedChunk, error)

func (f funcTranslator) TranslateChunk(ctx context.Context, c chunk.Chunk, m *glossary.Matcher, onStatus translate.StatusFunc) (*translate.TranslatedChunk, error) {
	return f(ctx, c, m, onStatus)
}

type recordingPersister struct {
	mu    sync.Mutex
	saved []*translate.TranslatedChunk
	err   error
}

func (p *recordingPersister) SaveChunk(_ context.Context, tc *translate.TranslatedChunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, tc)
	return nil
}

func (p *recordingPersister) positions() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.saved))
	for i, tc := range p.saved {
		out[i] = tc.Position
	}
	return out
}

var entries = []glossary.Entry{
	{English: "brake", Chinese: "制动器"},
	{English: "vehicle", Chinese: "车辆"},
	{English: "hoist", Chinese: "起升机构"},
	{English: "limiter", Chinese: "限制器"},
}

func makeChunks(texts ...string) []chunk.Chunk {
	out := make([]chunk.Chunk, len(texts))
	for i, t := range texts {
		out[i] = chunk.Chunk{ID: fmt.Sprintf("chunk_%d", i), Text: t, Position: i, Type: chunk.TypeParagraph}
	}
	return out
}

func echoTranslator(calls *[]int) funcTranslator {
	return func(_ context.Context, c chunk.Chunk, m *glossary.Matcher, _ translate.StatusFunc) (*translate.TranslatedChunk, error) {
		*calls = append(*calls, c.Position)
		return &translate.TranslatedChunk{
			Chunk:        c,
			Translation:  "译:" + c.Text,
			MatchedTerms: m.Identify(c.Text),
			TokenUsage:   &llm.Usage{Input: 10, Output: 20, Total: 30},
		}, nil
	}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
			return out
		}
	}
}

func byKind(events []Event, kind EventKind) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestRunTranslatesInOrderAndPersists(t *testing.T) {
	var calls []int
	persister := &recordingPersister{}
	c := NewCoordinator(echoTranslator(&calls), Options{Persister: persister}, nil)

	events, err := c.Run(context.Background(), makeChunks("the brake", "the vehicle", "plain text"), nil, entries)
	require.NoError(t, err)
	all := collect(t, events)

	assert.Equal(t, []int{0, 1, 2}, calls)
	assert.Equal(t, []int{0, 1, 2}, persister.positions())

	progress := byKind(all, EventProgress)
	require.Len(t, progress, 3)
	assert.Equal(t, 1, progress[0].Progress.Current)
	assert.Equal(t, 33, progress[0].Progress.Percentage)
	assert.Equal(t, 100, progress[2].Progress.Percentage)
	assert.Equal(t, glossary.Coverage{Matched: 2, Total: 4, Percentage: 50}, progress[2].Progress.GlossaryCoverage)

	last := all[len(all)-1]
	require.Equal(t, EventDone, last.Kind)
	s := last.Summary
	assert.Equal(t, 3, s.Translated)
	assert.Zero(t, s.Failed)
	assert.Equal(t, llm.Usage{Input: 30, Output: 60, Total: 90}, s.TokenUsage)
	require.Len(t, s.Chunks, 3)
	assert.Equal(t, "译:plain text", s.Chunks[2].Translation)
}

func TestRunResumesFromCompletedPrefix(t *testing.T) {
	var calls []int
	chunks := makeChunks("a brake", "b", "c hoist", "d")
	completed := []translate.TranslatedChunk{
		{Chunk: chunks[0], Translation: "旧0", MatchedTerms: []glossary.TermMatch{{English: "brake", Source: glossary.SourceGlossary}}},
		{Chunk: chunks[1], Translation: "旧1"},
	}

	c := NewCoordinator(echoTranslator(&calls), Options{}, nil)
	events, err := c.Run(context.Background(), chunks, completed, entries)
	require.NoError(t, err)
	all := collect(t, events)

	assert.Equal(t, []int{2, 3}, calls)
	progress := byKind(all, EventProgress)
	require.Len(t, progress, 2)
	assert.Equal(t, 3, progress[0].Progress.Current)
	assert.Equal(t, 4, progress[1].Progress.Current)

	s := all[len(all)-1].Summary
	assert.Equal(t, 2, s.Resumed)
	require.Len(t, s.Chunks, 4)
	for i, tc := range s.Chunks {
		assert.Equal(t, i, tc.Position)
	}
	assert.Equal(t, "旧0", s.Chunks[0].Translation)
	assert.Equal(t, "旧1", s.Chunks[1].Translation)
	assert.Equal(t, 2, s.Coverage.Matched)
}

func TestRunRecordsFailedChunkAndContinues(t *testing.T) {
	boom := errors.New("invalid argument")
	persister := &recordingPersister{}
	translator := funcTranslator(func(_ context.Context, c chunk.Chunk, _ *glossary.Matcher, _ translate.StatusFunc) (*translate.TranslatedChunk, error) {
		if c.Position == 1 {
			return nil, boom
		}
		return &translate.TranslatedChunk{Chunk: c, Translation: "ok"}, nil
	})
	c := NewCoordinator(translator, Options{Persister: persister}, nil)

	events, err := c.Run(context.Background(), makeChunks("x", "y", "z"), nil, entries)
	require.NoError(t, err)
	all := collect(t, events)

	errs := byKind(all, EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "chunk_1", errs[0].ChunkID)
	assert.ErrorIs(t, errs[0].Err, boom)

	s := all[len(all)-1].Summary
	assert.Equal(t, 2, s.Translated)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, "[Translation Error: invalid argument]", s.Chunks[1].Translation)
	assert.Equal(t, "invalid argument", s.Chunks[1].Error)
	assert.Equal(t, []int{0, 1, 2}, persister.positions())
}

func TestRunStopsOnPersistFailure(t *testing.T) {
	var calls []int
	persister := &recordingPersister{err: errors.New("disk full")}
	c := NewCoordinator(echoTranslator(&calls), Options{Persister: persister}, nil)

	events, err := c.Run(context.Background(), makeChunks("x", "y"), nil, entries)
	require.NoError(t, err)
	all := collect(t, events)

	assert.Equal(t, []int{0}, calls)
	s := all[len(all)-1].Summary
	require.Error(t, s.Err)
	assert.Contains(t, s.Err.Error(), "disk full")
	assert.Empty(t, byKind(all, EventChunkComplete))
}

func TestRunCancellationBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls []int
	translator := funcTranslator(func(_ context.Context, c chunk.Chunk, _ *glossary.Matcher, _ translate.StatusFunc) (*translate.TranslatedChunk, error) {
		calls = append(calls, c.Position)
		if c.Position == 0 {
			cancel()
		}
		return &translate.TranslatedChunk{Chunk: c, Translation: "ok"}, nil
	})
	c := NewCoordinator(translator, Options{Delay: time.Hour}, nil)

	events, err := c.Run(ctx, makeChunks("a", "b", "c"), nil, entries)
	require.NoError(t, err)
	all := collect(t, events)

	s := all[len(all)-1].Summary
	assert.True(t, s.Canceled)
	assert.Equal(t, []int{0}, calls)
	require.Len(t, s.Chunks, 1)
}

func TestRunPacingDelay(t *testing.T) {
	var calls []int
	c := NewCoordinator(echoTranslator(&calls), Options{Delay: 30 * time.Millisecond}, nil)

	start := time.Now()
	events, err := c.Run(context.Background(), makeChunks("a", "b", "c"), nil, entries)
	require.NoError(t, err)
	collect(t, events)

	// 三个分块之间有两次间隔，最后一块之后不等待
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRunValidatesInput(t *testing.T) {
	c := NewCoordinator(echoTranslator(new([]int)), Options{}, nil)

	_, err := c.Run(context.Background(), makeChunks("a"), nil, nil)
	assert.ErrorIs(t, err, glossary.ErrEmptyGlossary)

	chunks := makeChunks("a")
	_, err = c.Run(context.Background(), chunks, []translate.TranslatedChunk{{Chunk: chunks[0]}, {Chunk: chunks[0]}}, entries)
	assert.ErrorIs(t, err, ErrInvalidResume)
}

func TestRunForwardsStatusFromEngine(t *testing.T) {
	fake := &test.FuncClient{Fn: func(n int, _ string, _ llm.Request) (*llm.Response, error) {
		if n == 0 {
			return nil, test.RateLimited()
		}
		return test.Text("制动器"), nil
	}}
	pool, err := keypool.NewPool([]keypool.APIKey{{Key: "free-key-0001"}, {Key: "free-key-0002"}})
	require.NoError(t, err)
	engine := translate.NewEngine(fake, pool, translate.Config{CooldownTick: time.Millisecond}, nil)

	events, err := NewCoordinator(engine, Options{}, nil).Run(context.Background(), makeChunks("brake"), nil, entries)
	require.NoError(t, err)
	all := collect(t, events)

	status := byKind(all, EventStatus)
	require.Len(t, status, 1)
	assert.Contains(t, status[0].Status.Message, "switching to key 2/2")

	done := byKind(all, EventChunkComplete)
	require.Len(t, done, 1)
	assert.Equal(t, "制动器", done[0].Chunk.Translation)
	require.Len(t, done[0].Chunk.MatchedTerms, 1)
}

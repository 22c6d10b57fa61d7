package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/discord/platform"
	"github.com/glyphbot/glyph/internal/moderation/classifier"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"github.com/glyphbot/glyph/internal/moderation/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScorer struct {
	mu     sync.Mutex
	scores classifier.Scores
	err    error
	failOn string
	texts  []string
}

func (f *fakeScorer) Score(_ context.Context, text string) (classifier.Scores, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.texts = append(f.texts, text)

	if f.failOn != "" && text == f.failOn {
		return nil, classifier.ErrModelResponse
	}

	return f.scores, f.err
}

type fakePlatform struct {
	mu        sync.Mutex
	member    *platform.Member
	memberErr error
	sendErr   error
	sent      map[snowflake.ID][]discord.MessageCreate
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		member: &platform.Member{UserID: 40, Username: "troll", AvatarURL: "https://cdn.example/avatar.png"},
		sent:   make(map[snowflake.ID][]discord.MessageCreate),
	}
}

func (f *fakePlatform) GetMember(_ context.Context, _, _ snowflake.ID) (*platform.Member, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}

	return f.member, nil
}

func (f *fakePlatform) SendMessage(
	_ context.Context, channelID snowflake.ID, message discord.MessageCreate,
) (snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return 0, f.sendErr
	}

	f.sent[channelID] = append(f.sent[channelID], message)

	return 999, nil
}

type countingCounter struct {
	n atomic.Int64
}

func (c *countingCounter) Inc() {
	c.n.Add(1)
}

func (c *countingCounter) Total() int64 {
	return c.n.Load()
}

type brokenQueue struct {
	queue.Queue
}

func (brokenQueue) Dequeue(context.Context) (*queue.Message, error) {
	return nil, errors.New("connection reset")
}

func queued(content string) *queue.Message {
	return &queue.Message{
		GuildID:        10,
		ChannelID:      20,
		MessageID:      30,
		AuthorID:       40,
		Content:        content,
		ReportsChannel: 50,
		QueuedAt:       time.Now(),
	}
}

func flaggingScores() classifier.Scores {
	return classifier.Scores{"TOXICITY": 0.91, "INSULT": 0.8, "THREAT": 0.1, "SEVERE_TOXICITY": 0.4}
}

func newWorker(q queue.Queue, scorer classifier.Scorer, p *fakePlatform, counter worker.Counter) *worker.Worker {
	return worker.New(q, scorer, worker.NewReporter(p, 24*time.Hour, zap.NewNop()), counter,
		classifier.DefaultThresholds, 10*time.Millisecond, zap.NewNop())
}

func TestTickEmptyQueue(t *testing.T) {
	t.Parallel()

	scorer := &fakeScorer{}
	w := newWorker(queue.NewMemoryQueue(), scorer, newFakePlatform(), nil)

	assert.False(t, w.Tick(t.Context()))
	assert.Empty(t, scorer.texts)
}

func TestTickQueueReadError(t *testing.T) {
	t.Parallel()

	w := newWorker(brokenQueue{}, &fakeScorer{}, newFakePlatform(), nil)
	assert.False(t, w.Tick(t.Context()))
}

func TestTickProcessesOneItem(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	require.NoError(t, q.Enqueue(t.Context(), queued("first")))
	require.NoError(t, q.Enqueue(t.Context(), queued("second")))

	scorer := &fakeScorer{scores: classifier.Scores{"TOXICITY": 0.1}}
	counter := &countingCounter{}
	w := newWorker(q, scorer, newFakePlatform(), counter)

	assert.True(t, w.Tick(t.Context()))

	remaining, err := q.Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, []string{"first"}, scorer.texts)
	assert.Equal(t, int64(1), counter.n.Load())
}

func TestTickBenignMessage(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	require.NoError(t, q.Enqueue(t.Context(), queued("have a nice day")))

	p := newFakePlatform()
	w := newWorker(q, &fakeScorer{scores: classifier.Scores{"TOXICITY": 0.2, "INSULT": 0.1}}, p, nil)

	assert.True(t, w.Tick(t.Context()))
	assert.Empty(t, p.sent)
}

func TestTickFlaggedMessage(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	require.NoError(t, q.Enqueue(t.Context(), queued("you  are\u200b awful")))

	p := newFakePlatform()
	scorer := &fakeScorer{scores: flaggingScores()}
	w := newWorker(q, scorer, p, nil)

	assert.True(t, w.Tick(t.Context()))
	assert.Equal(t, []string{"you are awful"}, scorer.texts)

	require.Len(t, p.sent[50], 1)

	report := p.sent[50][0]
	require.Len(t, report.Embeds, 1)
	assert.Equal(t, "Message Flagged", report.Embeds[0].Title)
	require.Len(t, report.Components, 1)

	row, ok := report.Components[0].(discord.ActionRowComponent)
	require.True(t, ok)
	assert.Equal(t, "flagged_message_options:ban-20-30", row.Buttons()[4].CustomID)
}

func TestTickDropsFailedItems(t *testing.T) {
	t.Parallel()

	t.Run("score failure", func(t *testing.T) {
		t.Parallel()

		q := queue.NewMemoryQueue()
		require.NoError(t, q.Enqueue(t.Context(), queued("text")))

		p := newFakePlatform()
		w := newWorker(q, &fakeScorer{err: classifier.ErrModelResponse}, p, nil)

		assert.True(t, w.Tick(t.Context()))
		assert.False(t, w.Tick(t.Context()))
		assert.Empty(t, p.sent)
	})

	t.Run("send failure", func(t *testing.T) {
		t.Parallel()

		q := queue.NewMemoryQueue()
		require.NoError(t, q.Enqueue(t.Context(), queued("text")))

		p := newFakePlatform()
		p.sendErr = platform.ErrForbidden
		w := newWorker(q, &fakeScorer{scores: flaggingScores()}, p, nil)

		assert.True(t, w.Tick(t.Context()))
		assert.False(t, w.Tick(t.Context()))
	})

	t.Run("author lookup failure still reports", func(t *testing.T) {
		t.Parallel()

		q := queue.NewMemoryQueue()
		require.NoError(t, q.Enqueue(t.Context(), queued("text")))

		p := newFakePlatform()
		p.memberErr = platform.ErrNotFound
		w := newWorker(q, &fakeScorer{scores: flaggingScores()}, p, nil)

		assert.True(t, w.Tick(t.Context()))
		require.Len(t, p.sent[50], 1)
		assert.Equal(t, "Unknown user (40)", p.sent[50][0].Embeds[0].Author.Name)
	})
}

func TestTickContinuesAfterFailedItem(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	for i, content := range []string{"first", "second", "third"} {
		msg := queued(content)
		msg.MessageID = snowflake.ID(31 + i)
		require.NoError(t, q.Enqueue(t.Context(), msg))
	}

	p := newFakePlatform()
	scorer := &fakeScorer{scores: flaggingScores(), failOn: "second"}
	counter := &countingCounter{}
	w := newWorker(q, scorer, p, counter)

	for range 3 {
		assert.True(t, w.Tick(t.Context()))
	}
	assert.False(t, w.Tick(t.Context()))

	assert.Equal(t, []string{"first", "second", "third"}, scorer.texts)
	assert.Equal(t, int64(3), counter.Total())

	require.Len(t, p.sent[50], 2)
	assert.Equal(t, "Message ID: 31 • Author ID: 40", p.sent[50][0].Embeds[0].Footer.Text)
	assert.Equal(t, "Message ID: 33 • Author ID: 40", p.sent[50][1].Embeds[0].Footer.Text)

	row, ok := p.sent[50][1].Components[0].(discord.ActionRowComponent)
	require.True(t, ok)
	assert.Equal(t, "flagged_message_options:ban-20-33", row.Buttons()[4].CustomID)
}

func TestRunDrainsQueue(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	for range 3 {
		require.NoError(t, q.Enqueue(t.Context(), queued("text")))
	}

	counter := &countingCounter{}
	w := newWorker(q, &fakeScorer{scores: classifier.Scores{"TOXICITY": 0.1}}, newFakePlatform(), counter)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, w.Running, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return counter.n.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	assert.False(t, w.Running())
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	member := &platform.Member{UserID: 40, Username: "troll", AvatarURL: "https://cdn.example/avatar.png"}
	msg := queued(strings.Repeat("a", 120))

	report := worker.BuildReport(msg, member, flaggingScores(), 24*time.Hour)
	require.Len(t, report.Embeds, 1)

	embed := report.Embeds[0]
	assert.Equal(t, "Highest score was **TOXICITY** with a percentage of **91%**.\n"+
		"`INSULT`: **80%**\n`SEVERE_TOXICITY`: **40%**\n`THREAT`: **10%**", embed.Description)
	assert.Equal(t, 0xffffff, embed.Color)
	require.NotNil(t, embed.Author)
	assert.Equal(t, "troll (40)", embed.Author.Name)
	assert.Equal(t, "https://cdn.example/avatar.png", embed.Author.IconURL)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "Message Content", embed.Fields[0].Name)
	assert.Equal(t, "||"+strings.Repeat("a", 100)+"...||", embed.Fields[0].Value)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Message ID: 30 • Author ID: 40", embed.Footer.Text)

	short := worker.BuildReport(queued("short"), nil, classifier.Scores{"TOXICITY": 0.75}, 6*time.Hour)
	assert.Equal(t, "||short||", short.Embeds[0].Fields[0].Value)
	assert.Equal(t, "Highest score was **TOXICITY** with a percentage of **75%**.\n", short.Embeds[0].Description)
	assert.Equal(t, "Unknown user (40)", short.Embeds[0].Author.Name)

	row, ok := short.Components[0].(discord.ActionRowComponent)
	require.True(t, ok)
	assert.Equal(t, "Timeout [6h]", row.Buttons()[2].Label)
}

type flakyRunner struct {
	calls atomic.Int32
}

func (r *flakyRunner) Run(ctx context.Context) error {
	switch r.calls.Add(1) {
	case 1:
		panic("boom")
	case 2:
		return errors.New("lost connection")
	default:
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestSuperviseRestarts(t *testing.T) {
	t.Parallel()

	runner := &flakyRunner{}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})

	go func() {
		defer close(done)
		worker.Supervise(ctx, runner, 5*time.Millisecond, zap.NewNop())
	}()

	assert.Eventually(t, func() bool { return runner.calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}

	assert.Equal(t, int32(3), runner.calls.Load())
}

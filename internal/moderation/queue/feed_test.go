package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// slowSettings takes longer for earlier messages so that concurrent
// ingestion would reorder them.
type slowSettings struct {
	mu    sync.Mutex
	delay time.Duration
}

func (s *slowSettings) Get(context.Context, snowflake.ID, bool) (*types.GuildSetting, error) {
	s.mu.Lock()
	delay := s.delay
	s.delay /= 2
	s.mu.Unlock()

	time.Sleep(delay)

	return &types.GuildSetting{GuildID: 10, AIReportsChannel: 100}, nil
}

func TestFeedKeepsPushOrder(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	ingestor := queue.NewIngestor(q, &slowSettings{delay: 40 * time.Millisecond}, zap.NewNop())
	feed := queue.NewFeed(ingestor, 8, time.Second, zap.NewNop())

	for id := range 4 {
		require.NoError(t, feed.Push(queue.Inbound{GuildID: 10, MessageID: snowflake.ID(id + 1), Content: "hi"}))
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- feed.Run(ctx) }()

	assert.Eventually(t, func() bool {
		n, err := q.Len(t.Context())
		return err == nil && n == 4
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	for want := range 4 {
		msg, err := q.Dequeue(t.Context())
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, snowflake.ID(want+1), msg.MessageID)
	}
}

func TestFeedPush(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	feed := queue.NewFeed(queue.NewIngestor(q, &fakeSettings{}, zap.NewNop()), 1, time.Second, zap.NewNop())

	// Skipped messages never take a backlog slot
	require.NoError(t, feed.Push(queue.Inbound{GuildID: 10, AuthorBot: true, Content: "hi"}))
	require.NoError(t, feed.Push(queue.Inbound{Content: "hi"}))

	require.NoError(t, feed.Push(queue.Inbound{GuildID: 10, MessageID: 1, Content: "hi"}))
	require.ErrorIs(t, feed.Push(queue.Inbound{GuildID: 10, MessageID: 2, Content: "hi"}), queue.ErrFeedFull)
}

func TestFeedContinuesAfterIngestError(t *testing.T) {
	t.Parallel()

	settings := &flakySettings{failOn: 1}
	q := queue.NewMemoryQueue()
	feed := queue.NewFeed(queue.NewIngestor(q, settings, zap.NewNop()), 4, time.Second, zap.NewNop())

	for id := range 2 {
		in := queue.Inbound{GuildID: snowflake.ID(id + 1), MessageID: snowflake.ID(id + 1), Content: "hi"}
		require.NoError(t, feed.Push(in))
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() { _ = feed.Run(ctx) }()

	assert.Eventually(t, func() bool {
		n, err := q.Len(t.Context())
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)

	msg, err := q.Dequeue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), msg.MessageID)
}

type flakySettings struct {
	failOn snowflake.ID
}

func (f *flakySettings) Get(_ context.Context, guildID snowflake.ID, _ bool) (*types.GuildSetting, error) {
	if guildID == f.failOn {
		return nil, context.DeadlineExceeded
	}

	return &types.GuildSetting{GuildID: guildID, AIReportsChannel: 100}, nil
}

package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisQueue(t *testing.T) (*queue.RedisQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	return queue.NewRedisQueue(client, "moderation:queue", logger), mr
}

func testFIFO(t *testing.T, q queue.Queue) {
	t.Helper()

	ctx := t.Context()

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg)

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, &queue.Message{
			GuildID:   1,
			MessageID: snowflake.ID(i),
			Content:   "hello",
		}))
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for i := 1; i <= 3; i++ {
		msg, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, snowflake.ID(i), msg.MessageID)
		assert.Equal(t, "hello", msg.Content)
	}

	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryQueueFIFO(t *testing.T) {
	t.Parallel()
	testFIFO(t, queue.NewMemoryQueue())
}

func TestRedisQueueFIFO(t *testing.T) {
	t.Parallel()
	q, _ := setupRedisQueue(t)
	testFIFO(t, q)
}

func TestRedisQueueSkipsCorruptRecord(t *testing.T) {
	t.Parallel()
	q, mr := setupRedisQueue(t)
	ctx := t.Context()

	_, err := mr.Push("moderation:queue", "not json")
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, &queue.Message{MessageID: 2}))

	_, err = q.Dequeue(ctx)
	require.Error(t, err)

	msg, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(2), msg.MessageID)
}

func TestMemoryQueueConcurrent(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue()
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			assert.NoError(t, q.Enqueue(ctx, &queue.Message{MessageID: snowflake.ID(i + 1)}))
		}()
	}

	wg.Wait()

	seen := make(map[snowflake.ID]bool)

	for {
		msg, err := q.Dequeue(ctx)
		require.NoError(t, err)

		if msg == nil {
			break
		}

		seen[msg.MessageID] = true
	}

	assert.Len(t, seen, 200)
}

type fakeSettings struct {
	rows  map[snowflake.ID]*types.GuildSetting
	calls int
	err   error
}

func (f *fakeSettings) Get(_ context.Context, guildID snowflake.ID, autoInsert bool) (*types.GuildSetting, error) {
	f.calls++

	if autoInsert {
		panic("ingestion must not create settings")
	}

	if f.err != nil {
		return nil, f.err
	}

	return f.rows[guildID], nil
}

func TestIngest(t *testing.T) {
	t.Parallel()

	settings := &fakeSettings{rows: map[snowflake.ID]*types.GuildSetting{
		10: {GuildID: 10, AIReportsChannel: 100},
		20: {GuildID: 20},
	}}

	tests := []struct {
		name      string
		msg       queue.Inbound
		wantQueue bool
		wantCalls int
	}{
		{
			name:      "enabled guild",
			msg:       queue.Inbound{GuildID: 10, ChannelID: 1, MessageID: 2, AuthorID: 3, Content: "hi"},
			wantQueue: true,
			wantCalls: 1,
		},
		{
			name: "bot author",
			msg:  queue.Inbound{GuildID: 10, AuthorBot: true, Content: "hi"},
		},
		{
			name: "direct message",
			msg:  queue.Inbound{Content: "hi"},
		},
		{
			name: "empty content",
			msg:  queue.Inbound{GuildID: 10},
		},
		{
			name:      "no reports channel",
			msg:       queue.Inbound{GuildID: 20, Content: "hi"},
			wantCalls: 1,
		},
		{
			name:      "unknown guild",
			msg:       queue.Inbound{GuildID: 30, Content: "hi"},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		q := queue.NewMemoryQueue()
		settings.calls = 0
		ingestor := queue.NewIngestor(q, settings, zap.NewNop())

		queued, err := ingestor.Ingest(t.Context(), tt.msg)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.wantQueue, queued, tt.name)
		assert.Equal(t, tt.wantCalls, settings.calls, tt.name)

		n, _ := q.Len(t.Context())
		if tt.wantQueue {
			assert.Equal(t, 1, n, tt.name)

			msg, _ := q.Dequeue(t.Context())
			assert.Equal(t, snowflake.ID(100), msg.ReportsChannel, tt.name)
			assert.Equal(t, tt.msg.MessageID, msg.MessageID, tt.name)
			assert.WithinDuration(t, time.Now(), msg.QueuedAt, time.Minute, tt.name)
		} else {
			assert.Equal(t, 0, n, tt.name)
		}
	}
}

func TestIngestSettingsError(t *testing.T) {
	t.Parallel()

	errLookup := errors.New("lookup failed")
	q := queue.NewMemoryQueue()
	ingestor := queue.NewIngestor(q, &fakeSettings{err: errLookup}, zap.NewNop())

	queued, err := ingestor.Ingest(t.Context(), queue.Inbound{GuildID: 1, Content: "hi"})
	require.ErrorIs(t, err, errLookup)
	assert.False(t, queued)

	n, _ := q.Len(t.Context())
	assert.Equal(t, 0, n)
}

package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// ScannedKey holds the number of messages scanned across restarts.
const ScannedKey = "stats:scanned_messages"

// ErrCounterStopped is returned when flushing a stopped counter.
var ErrCounterStopped = errors.New("counter stopped")

// Counter counts scanned messages in memory and periodically adds the
// unflushed delta to a redis key.
type Counter struct {
	client   rueidis.Client
	key      string
	total    atomic.Int64
	pending  atomic.Int64
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewCounter creates a counter stored under key.
func NewCounter(client rueidis.Client, key string, logger *zap.Logger) *Counter {
	return &Counter{
		client:   client,
		key:      key,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("stats_counter"),
	}
}

// Load reads the persisted total. A missing key counts as zero.
func (c *Counter) Load(ctx context.Context) error {
	stored, err := c.client.Do(ctx, c.client.B().Get().Key(c.key).Build()).AsInt64()
	if err != nil && !rueidis.IsRedisNil(err) {
		return fmt.Errorf("failed to load %s: %w", c.key, err)
	}

	c.total.Store(stored + c.pending.Load())

	return nil
}

// Inc records one scanned message.
func (c *Counter) Inc() {
	c.total.Add(1)
	c.pending.Add(1)
}

// Total returns the persisted total plus everything counted since.
func (c *Counter) Total() int64 {
	return c.total.Load()
}

// Flush adds the unflushed delta to redis. The delta is kept for the next
// flush when the write fails.
func (c *Counter) Flush(ctx context.Context) error {
	delta := c.pending.Swap(0)
	if delta == 0 {
		return nil
	}

	err := c.client.Do(ctx, c.client.B().Incrby().Key(c.key).Increment(delta).Build()).Error()
	if err != nil {
		c.pending.Add(delta)
		return fmt.Errorf("failed to flush %s: %w", c.key, err)
	}

	return nil
}

// Start flushes every interval until ctx is done or Stop is called.
func (c *Counter) Start(ctx context.Context, interval time.Duration) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}

	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.Flush(ctx); err != nil {
					c.logger.Error("Failed to flush counter", zap.Error(err))
				}
			case <-ctx.Done():
				return
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop ends periodic flushing and writes what is left.
func (c *Counter) Stop(ctx context.Context) error {
	c.mu.Lock()

	if c.stopped {
		c.mu.Unlock()
		return ErrCounterStopped
	}

	c.stopped = true
	started := c.started
	close(c.stopChan)
	c.mu.Unlock()

	if started {
		<-c.done
	}

	return c.Flush(ctx)
}

package queue

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// RedisQueue keeps the FIFO in a Redis list so queued messages survive a restart.
type RedisQueue struct {
	client rueidis.Client
	key    string
	logger *zap.Logger
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a queue stored under key.
func NewRedisQueue(client rueidis.Client, key string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger.Named("redis_queue"),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg *Message) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queued message: %w", err)
	}

	err = q.client.Do(ctx, q.client.B().Rpush().Key(q.key).Element(string(data)).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*Message, error) {
	data, err := q.client.Do(ctx, q.client.B().Lpop().Key(q.key).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to dequeue message: %w", err)
	}

	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		// The record is already popped, so a corrupt entry is skipped
		q.logger.Error("Dropping unreadable queued message", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal queued message: %w", err)
	}

	return &msg, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.Do(ctx, q.client.B().Llen().Key(q.key).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}

	return int(n), nil
}

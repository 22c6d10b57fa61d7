package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an unbounded in-process FIFO. Queued messages are lost on restart.
type MemoryQueue struct {
	mu    sync.Mutex
	items []*Message
	head  int
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, msg *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, msg)

	return nil
}

func (q *MemoryQueue) Dequeue(_ context.Context) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.items) {
		return nil, nil
	}

	msg := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// Reclaim the consumed prefix once it dominates the slice
	if q.head > 64 && q.head*2 >= len(q.items) {
		q.items = append([]*Message(nil), q.items[q.head:]...)
		q.head = 0
	}

	return msg, nil
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.head, nil
}

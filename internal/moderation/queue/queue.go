package queue

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Message is a chat message waiting to be classified.
type Message struct {
	GuildID        snowflake.ID `json:"guildId"`
	ChannelID      snowflake.ID `json:"channelId"`
	MessageID      snowflake.ID `json:"messageId"`
	AuthorID       snowflake.ID `json:"authorId"`
	Content        string       `json:"content"`
	ReportsChannel snowflake.ID `json:"reportsChannel"` // where a flag report goes
	QueuedAt       time.Time    `json:"queuedAt"`
}

// Queue is a FIFO of messages awaiting classification.
type Queue interface {
	// Enqueue appends a message. It never blocks on consumers.
	Enqueue(ctx context.Context, msg *Message) error
	// Dequeue removes and returns the oldest message, or nil when empty.
	Dequeue(ctx context.Context) (*Message, error)
	// Len returns the number of queued messages.
	Len(ctx context.Context) (int, error)
}

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/types"
	"go.uber.org/zap"
)

// SettingsReader looks up a guild's configuration.
type SettingsReader interface {
	Get(ctx context.Context, guildID snowflake.ID, autoInsert bool) (*types.GuildSetting, error)
}

// Inbound is a message as observed on the gateway.
type Inbound struct {
	GuildID   snowflake.ID // zero for direct messages
	ChannelID snowflake.ID
	MessageID snowflake.ID
	AuthorID  snowflake.ID
	AuthorBot bool
	Content   string
}

// Ingestor decides which observed messages are queued for classification.
type Ingestor struct {
	queue    Queue
	settings SettingsReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewIngestor creates an ingestor feeding q.
func NewIngestor(q Queue, settings SettingsReader, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		queue:    q,
		settings: settings,
		logger:   logger.Named("ingestor"),
		now:      time.Now,
	}
}

// Ingest queues msg when its guild has moderation enabled. Bot authors,
// direct messages and empty messages are skipped before any lookup.
// Settings are never created here. It reports whether msg was queued.
func (i *Ingestor) Ingest(ctx context.Context, msg Inbound) (bool, error) {
	if skippable(msg) {
		return false, nil
	}

	setting, err := i.settings.Get(ctx, msg.GuildID, false)
	if err != nil {
		return false, fmt.Errorf("failed to load guild settings: %w", err)
	}

	if setting == nil || setting.AIReportsChannel == 0 {
		return false, nil
	}

	err = i.queue.Enqueue(ctx, &Message{
		GuildID:        msg.GuildID,
		ChannelID:      msg.ChannelID,
		MessageID:      msg.MessageID,
		AuthorID:       msg.AuthorID,
		Content:        msg.Content,
		ReportsChannel: setting.AIReportsChannel,
		QueuedAt:       i.now(),
	})
	if err != nil {
		return false, err
	}

	i.logger.Debug("Queued message for classification",
		zap.Uint64("guildID", uint64(msg.GuildID)),
		zap.Uint64("messageID", uint64(msg.MessageID)))

	return true, nil
}

func skippable(msg Inbound) bool {
	return msg.AuthorBot || msg.GuildID == 0 || msg.Content == ""
}

package bot

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/moderation/action"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"go.uber.org/zap"
)

const (
	// ingestTimeout bounds the settings lookup and enqueue of one message.
	ingestTimeout = 10 * time.Second
	// ingestBacklog is the number of observed messages awaiting ingestion.
	ingestBacklog = 1024
	// interactionTimeout bounds the handling of one report button press.
	interactionTimeout = 30 * time.Second
)

// handleReady logs the guild count and sets the presence.
func (b *Bot) handleReady(event *events.Ready) {
	b.logger.Info("Bot is ready",
		zap.String("user", event.User.Username),
		zap.Int("guilds", len(event.Guilds)))

	if err := b.client.SetPresence(b.ctx, gateway.WithPlayingActivity("/info")); err != nil {
		b.logger.Warn("Failed to set presence", zap.Error(err))
	}
}

// handleGuildJoin materializes the settings of a newly joined guild.
func (b *Bot) handleGuildJoin(event *events.GuildJoin) {
	b.logger.Info("Bot joined a new guild",
		zap.Uint64("guildID", uint64(event.Guild.ID)),
		zap.String("guild_name", event.Guild.Name))

	go func() {
		defer b.recoverPanic("guild join")

		ctx, cancel := context.WithTimeout(b.ctx, ingestTimeout)
		defer cancel()

		if _, err := b.app.Settings.Get(ctx, event.Guild.ID, true); err != nil {
			b.logger.Error("Failed to create guild settings",
				zap.Uint64("guildID", uint64(event.Guild.ID)),
				zap.Error(err))
		}
	}()
}

// handleMessageCreate hands guild messages to the ingestion feed.
func (b *Bot) handleMessageCreate(event *events.MessageCreate) {
	msg := event.Message

	in := queue.Inbound{
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		AuthorID:  msg.Author.ID,
		AuthorBot: msg.Author.Bot,
		Content:   msg.Content,
	}
	if event.GuildID != nil {
		in.GuildID = *event.GuildID
	}

	if !b.guildAllowed(in.GuildID) {
		return
	}

	if err := b.feed.Push(in); err != nil {
		b.logger.Warn("Dropped message",
			zap.Uint64("guildID", uint64(in.GuildID)),
			zap.Uint64("messageID", uint64(in.MessageID)),
			zap.Error(err))
	}
}

// handleComponentInteraction routes report buttons to the action workflow.
// Buttons it does not own are left for other handlers.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	customID := event.Data.CustomID()
	if _, ok := action.DecodeCustomID(customID); !ok {
		return
	}

	go func() {
		defer b.recoverPanic("component interaction")

		// Defer response to prevent Discord timeout while processing
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(b.ctx, interactionTimeout)
		defer cancel()

		in := action.Interaction{
			CustomID:        customID,
			ReportChannelID: event.Message.ChannelID,
			ReportMessageID: event.Message.ID,
			ModeratorID:     event.User().ID,
			ModeratorName:   event.User().Username,
		}
		if guildID := event.GuildID(); guildID != nil {
			in.GuildID = *guildID
		}

		start := time.Now()

		reply, ok := b.workflow.Handle(ctx, in)
		if !ok {
			return
		}

		b.logger.Debug("Component interaction handled",
			zap.String("custom_id", customID),
			zap.Duration("duration", time.Since(start)))

		_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(),
			discord.NewMessageUpdateBuilder().SetContent(reply.Content).Build())
		if err != nil {
			b.logger.Error("Failed to send interaction reply", zap.Error(err))
		}
	}()
}

// guildAllowed limits test mode to the debug guild.
func (b *Bot) guildAllowed(guildID snowflake.ID) bool {
	discordCfg := b.app.Config.Bot.Discord
	if !b.app.Config.Bot.TestMode || discordCfg.DebugGuildID == 0 {
		return true
	}

	return uint64(guildID) == discordCfg.DebugGuildID
}

func (b *Bot) recoverPanic(handler string) {
	if r := recover(); r != nil {
		b.logger.Error("Panic in event handler",
			zap.String("handler", handler),
			zap.Any("panic", r),
			zap.Stack("stack"))
	}
}

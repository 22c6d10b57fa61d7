package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Client performs moderation operations through the REST API.
type Client struct {
	rest   rest.Rest
	logger *zap.Logger
}

// New creates a platform client over the given REST client.
func New(r rest.Rest, logger *zap.Logger) *Client {
	return &Client{
		rest:   r,
		logger: logger.Named("platform"),
	}
}

func requestOpts(ctx context.Context, reason string) []rest.RequestOpt {
	opts := []rest.RequestOpt{rest.WithCtx(ctx)}
	if reason != "" {
		opts = append(opts, rest.WithReason(reason))
	}

	return opts
}

// GetMessage fetches a message by id.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*Message, error) {
	m, err := c.rest.GetMessage(channelID, messageID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", messageID, classify(err))
	}

	msg := &Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
	}

	if m.GuildID != nil {
		msg.GuildID = *m.GuildID
	}

	return msg, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID, reason string) error {
	if err := c.rest.DeleteMessage(channelID, messageID, requestOpts(ctx, reason)...); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, classify(err))
	}

	return nil
}

// GetMember resolves a guild member.
func (c *Client) GetMember(ctx context.Context, guildID, userID snowflake.ID) (*Member, error) {
	m, err := c.rest.GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member %d: %w", userID, classify(err))
	}

	return &Member{
		UserID:    m.User.ID,
		Username:  m.User.Username,
		AvatarURL: m.User.EffectiveAvatarURL(),
	}, nil
}

// TimeoutMember prevents a member from communicating until the given time.
func (c *Client) TimeoutMember(
	ctx context.Context, guildID, userID snowflake.ID, until time.Time, reason string,
) error {
	_, err := c.rest.UpdateMember(guildID, userID, discord.MemberUpdate{
		CommunicationDisabledUntil: json.NewNullablePtr(until),
	}, requestOpts(ctx, reason)...)
	if err != nil {
		return fmt.Errorf("failed to time out member %d: %w", userID, classify(err))
	}

	return nil
}

// KickMember removes a member from the guild.
func (c *Client) KickMember(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	if err := c.rest.RemoveMember(guildID, userID, requestOpts(ctx, reason)...); err != nil {
		return fmt.Errorf("failed to kick member %d: %w", userID, classify(err))
	}

	return nil
}

// BanMember bans a user from the guild without deleting their message history.
func (c *Client) BanMember(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	if err := c.rest.AddBan(guildID, userID, 0, requestOpts(ctx, reason)...); err != nil {
		return fmt.Errorf("failed to ban member %d: %w", userID, classify(err))
	}

	return nil
}

// SendMessage posts a message and returns its id.
func (c *Client) SendMessage(
	ctx context.Context, channelID snowflake.ID, message discord.MessageCreate,
) (snowflake.ID, error) {
	m, err := c.rest.CreateMessage(channelID, message, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to send message to %d: %w", channelID, classify(err))
	}

	return m.ID, nil
}

// UpdateMessageComponents replaces the components of a message, leaving its
// content and embeds untouched.
func (c *Client) UpdateMessageComponents(
	ctx context.Context, channelID, messageID snowflake.ID, components ...discord.ContainerComponent,
) error {
	update := discord.NewMessageUpdateBuilder().AddContainerComponents(components...).Build()

	if _, err := c.rest.UpdateMessage(channelID, messageID, update, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to update message %d: %w", messageID, classify(err))
	}

	return nil
}

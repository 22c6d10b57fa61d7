package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/glyphbot/glyph/internal/discord/platform"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("glyph/moderation/action")

// Replies shown to the moderator.
const (
	ReplyAlreadyHandled = "This report has already been handled."
	ReplyMessageGone    = "The flagged message no longer exists. The report has been closed."
	ReplyForbidden      = "I don't have permission to do that."
	ReplyFailed         = "Something went wrong while handling this report. Please try again."
	ReplyDeleted        = "Message deleted."
)

// Platform is the chat platform the workflow acts on.
type Platform interface {
	GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*platform.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID, reason string) error
	TimeoutMember(ctx context.Context, guildID, userID snowflake.ID, until time.Time, reason string) error
	KickMember(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	BanMember(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	UpdateMessageComponents(
		ctx context.Context, channelID, messageID snowflake.ID, components ...discord.ContainerComponent,
	) error
}

// WarnRecorder stores infractions caused by moderator actions.
type WarnRecorder interface {
	Create(ctx context.Context, warn *types.Warn) error
}

// Interaction is a button press on a flag report.
type Interaction struct {
	CustomID        string
	GuildID         snowflake.ID
	ReportChannelID snowflake.ID
	ReportMessageID snowflake.ID
	ModeratorID     snowflake.ID
	ModeratorName   string
}

// Reply is the ephemeral answer to the moderator.
type Reply struct {
	Content string
}

// Workflow turns moderator button presses into moderation actions.
type Workflow struct {
	platform Platform
	tracker  Tracker
	warns    WarnRecorder
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewWorkflow creates a workflow. warns may be nil to skip recording infractions.
func NewWorkflow(
	p Platform, tracker Tracker, warns WarnRecorder, timeout time.Duration, logger *zap.Logger,
) *Workflow {
	return &Workflow{
		platform: p,
		tracker:  tracker,
		warns:    warns,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.Named("action_workflow"),
	}
}

// Handle processes an interaction. It reports false when the interaction does
// not belong to the workflow, in which case nothing was done.
func (w *Workflow) Handle(ctx context.Context, in Interaction) (Reply, bool) {
	target, ok := DecodeCustomID(in.CustomID)
	if !ok {
		return Reply{}, false
	}

	ctx, span := tracer.Start(ctx, "action.Handle")
	defer span.End()

	span.SetAttributes(
		attribute.String("action", string(target.Action)),
		attribute.Int64("message_id", int64(target.MessageID)))

	logger := w.logger.With(
		zap.String("action", string(target.Action)),
		zap.Uint64("guildID", uint64(in.GuildID)),
		zap.Uint64("messageID", uint64(target.MessageID)),
		zap.Uint64("moderatorID", uint64(in.ModeratorID)))

	claimed, err := w.tracker.Claim(ctx, Claim{
		GuildID:     in.GuildID,
		ChannelID:   target.ChannelID,
		MessageID:   target.MessageID,
		ModeratorID: in.ModeratorID,
		Action:      target.Action,
	})
	if err != nil {
		logger.Error("Failed to claim flagged message", zap.Error(err))
		return Reply{Content: ReplyFailed}, true
	}

	if !claimed {
		logger.Debug("Flagged message already handled")
		w.disableControls(ctx, in, target, logger)

		return Reply{Content: ReplyAlreadyHandled}, true
	}

	msg, err := w.platform.GetMessage(ctx, target.ChannelID, target.MessageID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			logger.Info("Flagged message no longer exists")
			w.resolve(ctx, in, target, logger)

			return Reply{Content: ReplyMessageGone}, true
		}

		return w.fail(ctx, target, err, logger), true
	}

	guildID := msg.GuildID
	if guildID == 0 {
		guildID = in.GuildID
	}

	author := msg.AuthorName
	if author == "" {
		author = fmt.Sprintf("<@%d>", msg.AuthorID)
	}

	// The message goes first for every action. Until it is gone nothing has
	// changed, so the claim is released on failure.
	if err := w.deleteMessage(ctx, msg, auditReason(target.Action, in.ModeratorName)); err != nil {
		return w.fail(ctx, target, err, logger), true
	}

	content := w.punish(ctx, guildID, author, in, target.Action, msg, logger)

	logger.Info("Moderation action completed", zap.Uint64("authorID", uint64(msg.AuthorID)))
	w.resolve(ctx, in, target, logger)

	return Reply{Content: content}, true
}

// punish applies the member part of an action once the message is deleted and
// returns the confirmation. A failure here still closes the report since the
// deletion already happened, and the moderator is told what was left undone.
func (w *Workflow) punish(
	ctx context.Context, guildID snowflake.ID, author string, in Interaction, action Action,
	msg *platform.Message, logger *zap.Logger,
) string {
	reason := auditReason(action, in.ModeratorName)

	var (
		confirm string
		err     error
	)

	switch action {
	case ActionDelete:
		return ReplyDeleted
	case ActionTimeout:
		confirm = fmt.Sprintf("%s has been timed out for %s.", author, humanDuration(w.timeout))
		err = w.platform.TimeoutMember(ctx, guildID, msg.AuthorID, w.now().Add(w.timeout), reason)
	case ActionKick:
		confirm = author + " has been kicked."
		err = w.platform.KickMember(ctx, guildID, msg.AuthorID, reason)
	case ActionBan:
		confirm = author + " has been banned."
		err = w.platform.BanMember(ctx, guildID, msg.AuthorID, reason)
	}

	switch {
	case err == nil:
		w.recordWarn(ctx, guildID, msg.AuthorID, in, action)
		return confirm
	case errors.Is(err, platform.ErrNotFound) && action != ActionBan:
		return ReplyDeleted + " " + author + " is no longer a member of this server."
	case errors.Is(err, platform.ErrForbidden):
		logger.Warn("Missing permissions for moderation action", zap.Error(err))
		return ReplyDeleted + " " + ReplyForbidden
	default:
		logger.Error("Moderation action failed after message deletion", zap.Error(err))
		return fmt.Sprintf("%s Failed to %s %s.", ReplyDeleted, actionVerb(action), author)
	}
}

func (w *Workflow) deleteMessage(ctx context.Context, msg *platform.Message, reason string) error {
	err := w.platform.DeleteMessage(ctx, msg.ChannelID, msg.ID, reason)
	if errors.Is(err, platform.ErrNotFound) {
		return nil
	}

	return err
}

func (w *Workflow) recordWarn(ctx context.Context, guildID, userID snowflake.ID, in Interaction, action Action) {
	if w.warns == nil {
		return
	}

	err := w.warns.Create(ctx, &types.Warn{
		UserID:      userID,
		GuildID:     guildID,
		ModeratorID: in.ModeratorID,
		Reason:      fmt.Sprintf("Flagged message: %s by %s", action, in.ModeratorName),
	})
	if err != nil {
		w.logger.Error("Failed to record warn",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
	}
}

// fail releases the claim so another attempt can be made and picks the reply.
func (w *Workflow) fail(ctx context.Context, target Target, err error, logger *zap.Logger) Reply {
	if releaseErr := w.tracker.Release(ctx, target.MessageID); releaseErr != nil {
		logger.Error("Failed to release claim", zap.Error(releaseErr))
	}

	if errors.Is(err, platform.ErrForbidden) {
		logger.Warn("Missing permissions for moderation action", zap.Error(err))
		return Reply{Content: ReplyForbidden}
	}

	logger.Error("Moderation action failed", zap.Error(err))
	trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())

	return Reply{Content: ReplyFailed}
}

func (w *Workflow) resolve(ctx context.Context, in Interaction, target Target, logger *zap.Logger) {
	if err := w.tracker.Resolve(ctx, target.MessageID); err != nil {
		logger.Error("Failed to mark flagged message resolved", zap.Error(err))
	}

	w.disableControls(ctx, in, target, logger)
}

func (w *Workflow) disableControls(ctx context.Context, in Interaction, target Target, logger *zap.Logger) {
	if in.ReportMessageID == 0 {
		return
	}

	view := BuildView(in.GuildID, target.ChannelID, target.MessageID, w.timeout, true)

	err := w.platform.UpdateMessageComponents(ctx, in.ReportChannelID, in.ReportMessageID, view)
	if err != nil {
		logger.Warn("Failed to disable report controls", zap.Error(err))
	}
}

func auditReason(action Action, moderator string) string {
	switch action {
	case ActionTimeout:
		return "Flagged message by AI moderation. Timed out by " + moderator + "."
	case ActionKick:
		return "Flagged message by AI moderation. Kicked by " + moderator + "."
	case ActionBan:
		return "Flagged message by AI moderation. Banned by " + moderator + "."
	default:
		return "Flagged message by AI moderation. Deleted by " + moderator + "."
	}
}

func actionVerb(action Action) string {
	if action == ActionTimeout {
		return "time out"
	}

	return string(action)
}

// humanDuration renders whole days or hours, e.g. "1 day" or "6 hours".
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}

		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return plural(int64(d/(24*time.Hour)), "day")
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

package worker

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/discord/platform"
	"github.com/glyphbot/glyph/internal/moderation/action"
	"github.com/glyphbot/glyph/internal/moderation/classifier"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"go.uber.org/zap"
)

const (
	reportColor      = 0xffffff
	contentPreview   = 100
	secondaryDetails = 3
)

// Platform is what the reporter needs from the chat platform.
type Platform interface {
	GetMember(ctx context.Context, guildID, userID snowflake.ID) (*platform.Member, error)
	SendMessage(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) (snowflake.ID, error)
}

// Reporter posts flag reports to a guild's reports channel.
type Reporter struct {
	platform Platform
	timeout  time.Duration
	logger   *zap.Logger
}

// NewReporter creates a reporter. timeout is the duration offered by the
// report's timeout button.
func NewReporter(p Platform, timeout time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		platform: p,
		timeout:  timeout,
		logger:   logger.Named("reporter"),
	}
}

// Report sends the report for a flagged message and returns the id of the
// report message.
func (r *Reporter) Report(ctx context.Context, msg *queue.Message, scores classifier.Scores) (snowflake.ID, error) {
	member, err := r.platform.GetMember(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		r.logger.Debug("Failed to resolve report author",
			zap.Uint64("guildID", uint64(msg.GuildID)),
			zap.Uint64("authorID", uint64(msg.AuthorID)),
			zap.Error(err))

		member = nil
	}

	id, err := r.platform.SendMessage(ctx, msg.ReportsChannel, BuildReport(msg, member, scores, r.timeout))
	if err != nil {
		return 0, fmt.Errorf("failed to send report for message %d: %w", msg.MessageID, err)
	}

	return id, nil
}

// BuildReport renders the report for a flagged message. member may be nil
// when the author could not be resolved.
func BuildReport(
	msg *queue.Message, member *platform.Member, scores classifier.Scores, timeout time.Duration,
) discord.MessageCreate {
	ranked := rankScores(scores)

	var description strings.Builder
	if len(ranked) > 0 {
		fmt.Fprintf(&description, "Highest score was **%s** with a percentage of **%d%%**.\n",
			ranked[0].name, percent(ranked[0].score))

		details := make([]string, 0, secondaryDetails)
		for _, s := range ranked[1:min(len(ranked), secondaryDetails+1)] {
			details = append(details, fmt.Sprintf("`%s`: **%d%%**", s.name, percent(s.score)))
		}

		description.WriteString(strings.Join(details, "\n"))
	}

	authorName := fmt.Sprintf("Unknown user (%d)", msg.AuthorID)
	authorIcon := ""

	if member != nil {
		authorName = fmt.Sprintf("%s (%d)", member.Username, member.UserID)
		authorIcon = member.AvatarURL
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Message Flagged").
		SetDescription(description.String()).
		SetColor(reportColor).
		SetAuthor(authorName, "", authorIcon).
		AddField("Message Content", "||"+preview(msg.Content)+"||", false).
		SetFooterText(fmt.Sprintf("Message ID: %d • Author ID: %d", msg.MessageID, msg.AuthorID)).
		Build()

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		AddContainerComponents(action.BuildView(msg.GuildID, msg.ChannelID, msg.MessageID, timeout, false)).
		Build()
}

type rankedScore struct {
	name  string
	score float64
}

// rankScores orders scores from highest to lowest, breaking ties by name.
func rankScores(scores classifier.Scores) []rankedScore {
	ranked := make([]rankedScore, 0, len(scores))
	for name, score := range scores {
		ranked = append(ranked, rankedScore{name: name, score: score})
	}

	slices.SortFunc(ranked, func(a, b rankedScore) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return strings.Compare(a.name, b.name)
		}
	})

	return ranked
}

func percent(score float64) int {
	return int(math.Round(score * 100))
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= contentPreview {
		return content
	}

	return string(runes[:contentPreview]) + "..."
}

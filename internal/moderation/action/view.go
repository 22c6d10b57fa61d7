package action

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// JumpURL links to a message in the client.
func JumpURL(guildID, channelID, messageID snowflake.ID) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", guildID, channelID, messageID)
}

// BuildView returns the controls attached to a flag report. The timeout
// button is labelled with the configured timeout. The disabled variant is
// shown once the report has been resolved.
func BuildView(
	guildID, channelID, messageID snowflake.ID, timeout time.Duration, disabled bool,
) discord.ActionRowComponent {
	timeoutLabel := "Timeout [" + shortDuration(timeout) + "]"

	return discord.NewActionRow(
		discord.NewLinkButton("Jump to message", JumpURL(guildID, channelID, messageID)),
		discord.NewSecondaryButton("Delete", EncodeCustomID(ActionDelete, channelID, messageID)).
			WithDisabled(disabled),
		discord.NewSecondaryButton(timeoutLabel, EncodeCustomID(ActionTimeout, channelID, messageID)).
			WithDisabled(disabled),
		discord.NewDangerButton("Kick", EncodeCustomID(ActionKick, channelID, messageID)).
			WithDisabled(disabled),
		discord.NewDangerButton("Ban", EncodeCustomID(ActionBan, channelID, messageID)).
			WithDisabled(disabled),
	)
}

// shortDuration renders the largest whole unit, e.g. "1d", "6h" or "30m".
func shortDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}

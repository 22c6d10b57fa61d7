package action

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// Namespace prefixes every custom id owned by the workflow.
const Namespace = "flagged_message_options"

// Action is a moderator decision on a flagged message.
type Action string

const (
	ActionDelete  Action = "delete"
	ActionTimeout Action = "timeout"
	ActionKick    Action = "kick"
	ActionBan     Action = "ban"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionDelete, ActionTimeout, ActionKick, ActionBan:
		return true
	}

	return false
}

// Target is the decoded content of a custom id.
type Target struct {
	Action    Action
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// EncodeCustomID builds "flagged_message_options:{action}-{channel}-{message}".
func EncodeCustomID(action Action, channelID, messageID snowflake.ID) string {
	return fmt.Sprintf("%s:%s-%d-%d", Namespace, action, channelID, messageID)
}

// DecodeCustomID parses a custom id. It reports false for any id that is not
// a well-formed workflow id.
func DecodeCustomID(customID string) (Target, bool) {
	namespace, rest, ok := strings.Cut(customID, ":")
	if !ok || namespace != Namespace {
		return Target{}, false
	}

	parts := strings.Split(rest, "-")
	if len(parts) != 3 {
		return Target{}, false
	}

	action := Action(parts[0])
	if !action.Valid() {
		return Target{}, false
	}

	channelID, ok := parseID(parts[1])
	if !ok {
		return Target{}, false
	}

	messageID, ok := parseID(parts[2])
	if !ok {
		return Target{}, false
	}

	return Target{Action: action, ChannelID: channelID, MessageID: messageID}, true
}

func parseID(s string) (snowflake.ID, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}

	return snowflake.ID(v), true
}

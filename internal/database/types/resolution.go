package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ResolutionStatus is the state of a claimed flagged message.
type ResolutionStatus string

const (
	// ResolutionPending means a moderator claimed the message and the action is in flight.
	ResolutionPending ResolutionStatus = "pending"
	// ResolutionResolved means the action completed and the report is closed.
	ResolutionResolved ResolutionStatus = "resolved"
)

// FlaggedMessageResolution records which moderator action closed a flagged message.
// The primary key on message_id makes the first claim win.
type FlaggedMessageResolution struct {
	bun.BaseModel `bun:"table:flagged_message_resolutions,alias:fmr"`

	MessageID   snowflake.ID     `bun:",pk,notnull"`
	GuildID     snowflake.ID     `bun:",notnull"`
	ChannelID   snowflake.ID     `bun:",notnull"`
	Action      string           `bun:",notnull"`
	ModeratorID snowflake.ID     `bun:",notnull"`
	Status      ResolutionStatus `bun:",notnull"`
	ClaimedAt   time.Time        `bun:",notnull,default:current_timestamp"`
	ResolvedAt  time.Time        `bun:",nullzero"`
}

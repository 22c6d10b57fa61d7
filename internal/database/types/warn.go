package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Warn is an infraction recorded against a guild member.
type Warn struct {
	bun.BaseModel `bun:"table:warns"`

	ID          int64        `bun:",pk,autoincrement"`
	UserID      snowflake.ID `bun:",notnull"`
	GuildID     snowflake.ID `bun:",notnull"`
	ModeratorID snowflake.ID `bun:",nullzero"`
	Reason      string       `bun:",notnull"`
	CreatedAt   time.Time    `bun:",notnull,default:current_timestamp"`
}

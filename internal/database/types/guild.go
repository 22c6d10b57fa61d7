package types

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// GuildSetting is the per-guild configuration row.
// A zero channel id is stored as NULL and means "not configured".
type GuildSetting struct {
	bun.BaseModel `bun:"table:guild_config"`

	GuildID          snowflake.ID `bun:",pk,notnull"`
	AIReportsChannel snowflake.ID `bun:"ai_reports_channel,nullzero,unique"`
	LogsChannel      snowflake.ID `bun:"logs_channel,nullzero,unique"`
	LevelingEnabled  bool         `bun:",notnull,default:false"`
}

// DefaultGuildSetting returns the settings a guild starts with.
func DefaultGuildSetting(guildID snowflake.ID) *GuildSetting {
	return &GuildSetting{GuildID: guildID}
}

package settings

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/types"
)

// payloadVersion is bumped whenever the cached layout changes. Entries written
// with another version are treated as cache misses.
const payloadVersion = 1

// ErrPayloadVersion is returned when a cached entry has an unknown version.
var ErrPayloadVersion = errors.New("unsupported settings payload version")

// payload is the serialized form of a guild's settings held in the cache.
type payload struct {
	Version          int     `json:"v"`
	GuildID          uint64  `json:"guild_id"`
	AIReportsChannel *uint64 `json:"ai_reports_channel"`
	LogsChannel      *uint64 `json:"logs_channel"`
	LevelingEnabled  bool    `json:"leveling_enabled"`
}

func encode(s *types.GuildSetting) ([]byte, error) {
	p := payload{
		Version:          payloadVersion,
		GuildID:          uint64(s.GuildID),
		AIReportsChannel: optionalID(s.AIReportsChannel),
		LogsChannel:      optionalID(s.LogsChannel),
		LevelingEnabled:  s.LevelingEnabled,
	}

	data, err := sonic.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	return data, nil
}

func decode(data []byte) (*types.GuildSetting, error) {
	var p payload
	if err := sonic.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	if p.Version != payloadVersion {
		return nil, fmt.Errorf("%w: %d", ErrPayloadVersion, p.Version)
	}

	return &types.GuildSetting{
		GuildID:          snowflake.ID(p.GuildID),
		AIReportsChannel: idOrZero(p.AIReportsChannel),
		LogsChannel:      idOrZero(p.LogsChannel),
		LevelingEnabled:  p.LevelingEnabled,
	}, nil
}

func optionalID(id snowflake.ID) *uint64 {
	if id == 0 {
		return nil
	}

	v := uint64(id)

	return &v
}

func idOrZero(v *uint64) snowflake.ID {
	if v == nil {
		return 0
	}

	return snowflake.ID(*v)
}

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/dbretry"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// GuildSettingModel handles database operations for guild configuration.
type GuildSettingModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGuildSetting creates a GuildSettingModel with database access.
func NewGuildSetting(db *bun.DB, logger *zap.Logger) *GuildSettingModel {
	return &GuildSettingModel{
		db:     db,
		logger: logger.Named("db_guild_setting"),
	}
}

// Get retrieves the settings of a guild. When no row exists and autoInsert is
// set, the default row is created in the same transaction and returned.
// Otherwise a missing row yields nil with no error.
func (r *GuildSettingModel) Get(
	ctx context.Context, guildID snowflake.ID, autoInsert bool,
) (*types.GuildSetting, error) {
	var result *types.GuildSetting

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		result = nil

		setting := &types.GuildSetting{GuildID: guildID}

		err := tx.NewSelect().Model(setting).WherePK().Scan(ctx)
		if err == nil {
			result = setting
			return nil
		}

		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to get guild settings: %w (guildID=%d)", err, guildID)
		}

		if !autoInsert {
			return nil
		}

		_, err = tx.NewInsert().
			Model(types.DefaultGuildSetting(guildID)).
			On("CONFLICT (guild_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create guild settings: %w (guildID=%d)", err, guildID)
		}

		// Another writer may have won the insert, so read back what is stored
		if err := tx.NewSelect().Model(setting).WherePK().Scan(ctx); err != nil {
			return fmt.Errorf("failed to read created guild settings: %w (guildID=%d)", err, guildID)
		}

		r.logger.Debug("Created default guild settings", zap.Uint64("guildID", uint64(guildID)))

		result = setting

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Upsert writes every column of the settings row, creating it if needed.
func (r *GuildSettingModel) Upsert(ctx context.Context, setting *types.GuildSetting) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(setting).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("ai_reports_channel = EXCLUDED.ai_reports_channel").
			Set("logs_channel = EXCLUDED.logs_channel").
			Set("leveling_enabled = EXCLUDED.leveling_enabled").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save guild settings: %w (guildID=%d)", err, setting.GuildID)
		}

		return nil
	})
}

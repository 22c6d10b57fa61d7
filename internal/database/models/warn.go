package models

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/dbretry"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// WarnModel handles database operations for member infractions.
type WarnModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewWarn creates a WarnModel with database access.
func NewWarn(db *bun.DB, logger *zap.Logger) *WarnModel {
	return &WarnModel{
		db:     db,
		logger: logger.Named("db_warn"),
	}
}

// Create records a new warn. The generated id is written back into warn.
func (r *WarnModel) Create(ctx context.Context, warn *types.Warn) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(warn).Returning("id, created_at").Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create warn: %w (guildID=%d, userID=%d)",
				err, warn.GuildID, warn.UserID)
		}

		return nil
	})
}

// List returns the warns of a member in a guild, newest first.
func (r *WarnModel) List(ctx context.Context, guildID, userID snowflake.ID) ([]*types.Warn, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Warn, error) {
		var warns []*types.Warn

		err := r.db.NewSelect().Model(&warns).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list warns: %w (guildID=%d, userID=%d)", err, guildID, userID)
		}

		return warns, nil
	})
}

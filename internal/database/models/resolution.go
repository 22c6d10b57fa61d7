package models

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/dbretry"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ResolutionModel tracks which flagged messages have been acted on.
type ResolutionModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewResolution creates a ResolutionModel with database access.
func NewResolution(db *bun.DB, logger *zap.Logger) *ResolutionModel {
	return &ResolutionModel{
		db:     db,
		logger: logger.Named("db_resolution"),
	}
}

// Claim inserts a pending resolution for the message. A pending claim older
// than lease is taken over. It reports false when the message is resolved or
// holds a live claim.
func (r *ResolutionModel) Claim(
	ctx context.Context, res *types.FlaggedMessageResolution, lease time.Duration,
) (bool, error) {
	res.Status = types.ResolutionPending
	res.ClaimedAt = time.Now()
	staleBefore := res.ClaimedAt.Add(-lease)

	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := r.db.NewInsert().Model(res).
			On("CONFLICT (message_id) DO UPDATE").
			Set("guild_id = EXCLUDED.guild_id").
			Set("channel_id = EXCLUDED.channel_id").
			Set("action = EXCLUDED.action").
			Set("moderator_id = EXCLUDED.moderator_id").
			Set("claimed_at = EXCLUDED.claimed_at").
			Where("fmr.status = ?", types.ResolutionPending).
			Where("fmr.claimed_at < ?", staleBefore).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to claim resolution: %w (messageID=%d)", err, res.MessageID)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read claim result: %w (messageID=%d)", err, res.MessageID)
		}

		return affected == 1, nil
	})
}

// Release removes a pending claim so the action can be attempted again.
// Resolved claims are never removed.
func (r *ResolutionModel) Release(ctx context.Context, messageID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewDelete().
			Model((*types.FlaggedMessageResolution)(nil)).
			Where("message_id = ?", messageID).
			Where("status = ?", types.ResolutionPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to release resolution: %w (messageID=%d)", err, messageID)
		}

		return nil
	})
}

// MarkResolved moves a claim to the resolved state.
func (r *ResolutionModel) MarkResolved(ctx context.Context, messageID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewUpdate().
			Model((*types.FlaggedMessageResolution)(nil)).
			Set("status = ?", types.ResolutionResolved).
			Set("resolved_at = ?", time.Now()).
			Where("message_id = ?", messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve: %w (messageID=%d)", err, messageID)
		}

		return nil
	})
}

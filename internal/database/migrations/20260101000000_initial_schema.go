package migrations

import (
	"context"
	"fmt"

	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.GuildSetting)(nil),
			(*types.Warn)(nil),
			(*types.FlaggedMessageResolution)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		_, err := db.NewCreateIndex().
			Model((*types.Warn)(nil)).
			Index("idx_warns_guild_user").
			Column("guild_id", "user_id").
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create warns index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.FlaggedMessageResolution)(nil),
			(*types.Warn)(nil),
			(*types.GuildSetting)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database"
	"github.com/glyphbot/glyph/internal/database/migrations"
	"github.com/glyphbot/glyph/internal/database/types"
	"github.com/glyphbot/glyph/internal/redis"
	"github.com/glyphbot/glyph/internal/settings"
	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var (
	ErrNameRequired    = errors.New("NAME argument required")
	ErrGuildIDRequired = errors.New("GUILD_ID argument required")
	ErrMemberRequired  = errors.New("GUILD_ID and USER_ID arguments required")
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// Setup dependencies
	cfg, db, migrator, logger, err := setupMigrator()
	if err != nil {
		return fmt.Errorf("failed to setup migrator: %w", err)
	}
	defer db.Close()

	app := &cli.Command{
		Name:  "db",
		Usage: "Database management tool",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Initialize migration tables",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return migrator.Init(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run pending migrations",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := migrator.Lock(ctx); err != nil {
						return err
					}
					defer migrator.Unlock(ctx) //nolint:errcheck

					group, err := migrator.Migrate(ctx)
					if err != nil {
						return err
					}

					if group.IsZero() {
						logger.Info("No new migrations to run (database is up to date)")
						return nil
					}

					logger.Info("Successfully migrated", zap.String("group", group.String()))

					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "Rollback the last migration group",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := migrator.Lock(ctx); err != nil {
						return err
					}
					defer migrator.Unlock(ctx) //nolint:errcheck

					group, err := migrator.Rollback(ctx)
					if err != nil {
						return err
					}

					if group.IsZero() {
						logger.Info("No groups to roll back")
						return nil
					}

					logger.Info("Successfully rolled back", zap.String("group", group.String()))

					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show migration status",
				Action: func(ctx context.Context, _ *cli.Command) error {
					ms, err := migrator.MigrationsWithStatus(ctx)
					if err != nil {
						return err
					}

					logger.Info("Migration status",
						zap.String("migrations", ms.String()),
						zap.String("unapplied", ms.Unapplied().String()),
						zap.String("last_group", ms.LastGroup().String()),
					)

					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "Create a new Go migration file",
				ArgsUsage: "NAME",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return ErrNameRequired
					}

					mf, err := migrator.CreateGoMigration(ctx, c.Args().First())
					if err != nil {
						return err
					}

					logger.Info("Created Go migration",
						zap.String("name", mf.Name),
						zap.String("path", mf.Path),
					)

					return nil
				},
			},
			{
				Name:      "reset-guild",
				Usage:     "Restore a guild's configuration to the defaults",
				ArgsUsage: "GUILD_ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					guildID, err := parseGuild(c.Args().Slice())
					if err != nil {
						return err
					}

					store, closeStore, err := newSettingsStore(cfg, db, logger)
					if err != nil {
						return err
					}
					defer closeStore()

					if err := store.Reset(ctx, guildID); err != nil {
						return err
					}

					logger.Info("Guild configuration reset", zap.Uint64("guildID", uint64(guildID)))

					return nil
				},
			},
			{
				Name:      "invalidate-guild",
				Usage:     "Drop a guild's cached configuration after editing its row by hand",
				ArgsUsage: "GUILD_ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					guildID, err := parseGuild(c.Args().Slice())
					if err != nil {
						return err
					}

					store, closeStore, err := newSettingsStore(cfg, db, logger)
					if err != nil {
						return err
					}
					defer closeStore()

					if err := store.Invalidate(ctx, guildID); err != nil {
						return err
					}

					logger.Info("Guild configuration cache dropped", zap.Uint64("guildID", uint64(guildID)))

					return nil
				},
			},
			{
				Name:      "warns",
				Usage:     "List the warns of a member, newest first",
				ArgsUsage: "GUILD_ID USER_ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					guildID, userID, err := parseMember(c.Args().Slice())
					if err != nil {
						return err
					}

					warns, err := db.Model().Warn().List(ctx, guildID, userID)
					if err != nil {
						return err
					}

					logger.Info("Member warns",
						zap.Uint64("guildID", uint64(guildID)),
						zap.Uint64("userID", uint64(userID)),
						zap.Int("count", len(warns)))

					return printWarns(os.Stdout, warns)
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// parseGuild reads the GUILD_ID argument.
func parseGuild(args []string) (snowflake.ID, error) {
	if len(args) != 1 {
		return 0, ErrGuildIDRequired
	}

	guildID, err := snowflake.Parse(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid guild id: %w", err)
	}

	return guildID, nil
}

// parseMember reads the GUILD_ID USER_ID arguments.
func parseMember(args []string) (guildID, userID snowflake.ID, err error) {
	if len(args) != 2 {
		return 0, 0, ErrMemberRequired
	}

	guildID, err = snowflake.Parse(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid guild id: %w", err)
	}

	userID, err = snowflake.Parse(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid user id: %w", err)
	}

	return guildID, userID, nil
}

// printWarns writes one line per warn.
func printWarns(w io.Writer, warns []*types.Warn) error {
	if len(warns) == 0 {
		_, err := fmt.Fprintln(w, "No warns.")
		return err
	}

	for _, warn := range warns {
		_, err := fmt.Fprintf(w, "#%d  %s  moderator=%d  %s\n",
			warn.ID, warn.CreatedAt.UTC().Format(time.DateTime), warn.ModeratorID, warn.Reason)
		if err != nil {
			return err
		}
	}

	return nil
}

// setupMigrator initializes the database connection and migrator.
func setupMigrator() (*config.Config, database.Client, *migrate.Migrator, *zap.Logger, error) {
	// Load full configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Create development logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Connect to database
	db, err := database.NewConnection(context.Background(), &cfg.Common.PostgreSQL, logger, false)
	if err != nil {
		return nil, nil, nil, logger, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Create migrator using database connection and migrations
	migrator := migrate.NewMigrator(db.DB(), migrations.Migrations)

	return cfg, db, migrator, logger, nil
}

// newSettingsStore builds a settings store over the cache backend the bot is
// configured with, so writes replace the entry the bot reads.
func newSettingsStore(
	cfg *config.Config, db database.Client, logger *zap.Logger,
) (*settings.Store, func(), error) {
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	cache, err := settings.NewCache(&cfg.Bot.Cache, redisManager)
	if err != nil {
		redisManager.Close()
		return nil, nil, err
	}

	if cfg.Bot.Cache.Backend == "memory" {
		logger.Warn("Running bots keep their in-memory settings until the cache TTL passes",
			zap.Int("ttlSeconds", cfg.Bot.Cache.TTL))
	}

	return settings.NewStore(db.Model().GuildSetting(), cache, logger), redisManager.Close, nil
}

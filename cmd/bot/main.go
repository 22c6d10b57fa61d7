package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glyphbot/glyph/internal/bot"
	"github.com/glyphbot/glyph/internal/setup"
	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/glyphbot/glyph/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"

	// shutdownTimeout bounds the graceful shutdown.
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "bot",
		Usage: "Start the glyph moderation bot",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "test-mode",
				Usage: "Only handle the debug guild and log at debug level",
			},
			&cli.StringFlag{
				Name:  "log-dir",
				Value: BotLogDir,
				Usage: "Directory for log sessions",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("test-mode") {
				if err := os.Setenv(config.EnvPrefix+"BOT__TEST_MODE", "true"); err != nil {
					return err
				}
			}

			return runBot(ctx, c.String("log-dir"))
		},
	}

	return app.Run(context.Background(), os.Args)
}

func runBot(ctx context.Context, logDir string) error {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, logDir)
	if err != nil {
		return err
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		app.Cleanup(cleanupCtx)
	}()

	// Create bot instance
	discordBot, err := bot.New(app)
	if err != nil {
		return err
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		discordBot.Close(closeCtx)

		return err
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	discordBot.Close(closeCtx)

	return nil
}

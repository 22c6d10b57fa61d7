package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/glyphbot/glyph/internal/discord/platform"
	"github.com/glyphbot/glyph/internal/moderation/action"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"github.com/glyphbot/glyph/internal/moderation/worker"
	"github.com/glyphbot/glyph/internal/setup"
	"go.uber.org/zap"
)

// Bot connects the gateway to the moderation pipeline: messages are ingested,
// classified by a supervised worker and handled through report buttons.
type Bot struct {
	app      *setup.App
	client   bot.Client
	platform *platform.Client
	feed     *queue.Feed
	workflow *action.Workflow
	worker   *worker.Worker
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates the bot and its Discord client.
func New(app *setup.App) (*Bot, error) {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		app:    app,
		ctx:    ctx,
		cancel: cancel,
		logger: app.Logger.Named("bot"),
	}

	// Configure Discord client with required gateway intents and event handlers
	client, err := disgo.New(app.Config.Bot.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnReady:                b.handleReady,
			OnGuildJoin:            b.handleGuildJoin,
			OnMessageCreate:        b.handleMessageCreate,
			OnComponentInteraction: b.handleComponentInteraction,
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	mod := app.Config.Bot.Moderation

	b.client = client
	b.platform = platform.New(client.Rest(), app.Logger)
	b.feed = queue.NewFeed(
		queue.NewIngestor(app.Queue, app.Settings, app.Logger), ingestBacklog, ingestTimeout, app.Logger,
	)
	timeout := time.Duration(mod.TimeoutDuration) * time.Minute

	b.workflow = action.NewWorkflow(b.platform, app.Tracker, app.DB.Model().Warn(), timeout, app.Logger)
	b.worker = worker.New(
		app.Queue, app.Scorer, worker.NewReporter(b.platform, timeout, app.Logger), app.Counter,
		app.Thresholds(), time.Duration(mod.ScanInterval)*time.Millisecond,
		app.LogManager.GetWorkerLogger("classifier_worker"),
	)

	return b, nil
}

// Start begins the ingestion and classifier loops and opens the gateway
// connection.
func (b *Bot) Start() error {
	mod := b.app.Config.Bot.Moderation

	flushInterval := time.Duration(b.app.Config.Bot.Stats.FlushInterval) * time.Second
	b.app.Counter.Start(b.ctx, flushInterval)

	restartDelay := time.Duration(mod.RestartDelay) * time.Millisecond

	b.wg.Add(3)

	go func() {
		defer b.wg.Done()
		worker.Supervise(b.ctx, b.worker, restartDelay, b.logger)
	}()

	go func() {
		defer b.wg.Done()
		worker.Supervise(b.ctx, b.feed, restartDelay, b.logger)
	}()

	go func() {
		defer b.wg.Done()
		b.worker.ReportStatus(b.ctx, flushInterval)
	}()

	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(b.ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	return nil
}

// Close stops the classifier loop and shuts down the gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")

	b.client.Close(ctx)
	b.cancel()
	b.wg.Wait()
}

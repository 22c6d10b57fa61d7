package setup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/glyphbot/glyph/internal/database"
	"github.com/glyphbot/glyph/internal/moderation/action"
	"github.com/glyphbot/glyph/internal/moderation/classifier"
	"github.com/glyphbot/glyph/internal/moderation/queue"
	"github.com/glyphbot/glyph/internal/redis"
	"github.com/glyphbot/glyph/internal/settings"
	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/glyphbot/glyph/internal/setup/telemetry"
	"github.com/glyphbot/glyph/internal/stats"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrUnknownBackend is returned when a configured backend name is not supported.
var ErrUnknownBackend = errors.New("unknown backend")

// App bundles all core dependencies and services needed by the bot.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	Settings     *settings.Store    // Guild settings with cache
	Queue        queue.Queue        // Messages waiting for classification
	Tracker      action.Tracker     // Flag report resolution claims
	Scorer       classifier.Scorer  // Classification backend
	Counter      *stats.Counter     // Scanned messages counter
	LogManager   *telemetry.Manager // Log management system
	genaiClient  *genai.Client      // Set when the gemini scorer is used
	stopTracing  func(context.Context) error
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Tracing is configured before loggers so error spans reach the exporter
	stopTracing := telemetry.SetupTracing(serviceType, &cfg.Common.Uptrace)

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, &cfg.Common.Uptrace)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		_ = stopTracing(ctx)
		return nil, err
	}

	app := &App{
		Config:      cfg,
		Logger:      logger,
		DBLogger:    dbLogger.Named("database"),
		LogManager:  logManager,
		stopTracing: stopTracing,
	}

	if err := app.initialize(ctx); err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	return app, nil
}

// initialize connects the storage layers and builds the moderation components.
func (s *App) initialize(ctx context.Context) error {
	cfg := s.Config

	// Redis manager provides connection pools for various subsystems
	s.RedisManager = redis.NewManager(&cfg.Common.Redis, s.Logger)

	// Database connection is retried a bounded number of times then fails startup
	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, s.DBLogger, true)
	if err != nil {
		return err
	}

	s.DB = db

	cache, err := settings.NewCache(&cfg.Bot.Cache, s.RedisManager)
	if err != nil {
		return err
	}

	s.Settings = settings.NewStore(db.Model().GuildSetting(), cache, s.Logger)

	if s.Queue, err = s.newQueue(); err != nil {
		return err
	}

	if s.Tracker, err = s.newTracker(); err != nil {
		return err
	}

	if s.Scorer, err = s.newScorer(ctx); err != nil {
		return err
	}

	statsClient, err := s.RedisManager.GetClient(redis.StatsDBIndex)
	if err != nil {
		return err
	}

	s.Counter = stats.NewCounter(statsClient, stats.ScannedKey, s.Logger)
	if err := s.Counter.Load(ctx); err != nil {
		s.Logger.Warn("Failed to load scanned message count", zap.Error(err))
	}

	return nil
}

// Thresholds returns the flag decision thresholds from the config.
func (s *App) Thresholds() classifier.Thresholds {
	return classifier.Thresholds{
		Average: s.Config.Bot.Moderation.AverageThreshold,
		Spike:   s.Config.Bot.Moderation.SpikeThreshold,
	}
}

func (s *App) newQueue() (queue.Queue, error) {
	q := s.Config.Bot.Queue

	switch q.Backend {
	case "memory":
		return queue.NewMemoryQueue(), nil
	case "redis":
		client, err := s.RedisManager.GetClient(redis.QueueDBIndex)
		if err != nil {
			return nil, err
		}

		return queue.NewRedisQueue(client, q.Key, s.Logger), nil
	default:
		return nil, fmt.Errorf("%w: queue %q", ErrUnknownBackend, q.Backend)
	}
}

func (s *App) newTracker() (action.Tracker, error) {
	m := s.Config.Bot.Moderation
	lease := time.Duration(m.ClaimLease) * time.Second

	switch m.Tracker {
	case "database":
		return action.NewDatabaseTracker(s.DB.Model().Resolution(), lease), nil
	case "memory":
		s.Logger.Warn("Resolution claims are kept in memory and will not survive a restart")
		return action.NewMemoryTracker(lease), nil
	default:
		return nil, fmt.Errorf("%w: tracker %q", ErrUnknownBackend, m.Tracker)
	}
}

func (s *App) newScorer(ctx context.Context) (classifier.Scorer, error) {
	m := s.Config.Bot.Moderation

	switch m.Scorer {
	case "perspective":
		return classifier.NewPerspectiveScorer(ctx, &s.Config.Common.Perspective, m.Attributes, s.Logger)
	case "gemini":
		client, err := genai.NewClient(ctx, option.WithAPIKey(s.Config.Common.Gemini.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}

		s.genaiClient = client

		return classifier.NewGeminiScorer(client, &s.Config.Common.Gemini, m.Attributes, s.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", classifier.ErrUnknownScorer, m.Scorer)
	}
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Write counts that were not flushed yet
	if s.Counter != nil {
		if err := s.Counter.Stop(ctx); err != nil && !errors.Is(err, stats.ErrCounterStopped) {
			s.Logger.Error("Failed to flush scanned message count", zap.Error(err))
		}
	}

	if s.genaiClient != nil {
		if err := s.genaiClient.Close(); err != nil {
			s.Logger.Error("Failed to close gemini client", zap.Error(err))
		}
	}

	// Close database connections
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}

	// Close Redis connections last as other components might need it during cleanup
	if s.RedisManager != nil {
		s.RedisManager.Close()
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Flush pending spans
	if err := s.stopTracing(ctx); err != nil {
		log.Printf("Failed to shutdown tracing: %v", err)
	}

	s.LogManager.Close()
}

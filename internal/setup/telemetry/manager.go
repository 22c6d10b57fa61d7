package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/glyphbot/glyph/internal/setup/telemetry/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceType represents the type of service being initialized.
type ServiceType int

const (
	ServiceBot ServiceType = iota
	ServiceDB
)

// String returns the component name used for the service.
func (s ServiceType) String() string {
	switch s {
	case ServiceBot:
		return "bot"
	case ServiceDB:
		return "db"
	default:
		return "unknown"
	}
}

const sessionLayout = "2006-01-02_15-04-05"

// Manager creates the loggers of one process run. Every run writes into its own
// timestamped session directory under logDir.
type Manager struct {
	instanceID    string
	componentName string
	logDir        string
	level         string
	maxLogsToKeep int
	maxLogLines   int
	traceErrors   bool

	mu         sync.Mutex
	sessionDir string
	files      []*logger.CappedFile
}

// NewManager creates a new Manager instance. Error entries are also recorded
// as spans when an Uptrace DSN is configured.
func NewManager(
	serviceType ServiceType, logDir string, debugCfg *config.Debug, uptraceCfg *config.Uptrace,
) *Manager {
	return &Manager{
		instanceID:    uuid.New().String(),
		componentName: serviceType.String(),
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogLines:   debugCfg.MaxLogLines,
		traceErrors:   uptraceCfg.DSN != "",
	}
}

// GetLoggers initializes the main and database loggers.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.sessionDir, "main.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(lm.sessionDir, "database.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	fields := []zap.Field{
		zap.String("component", lm.componentName),
		zap.String("instanceID", lm.instanceID),
	}

	return mainLogger.With(fields...), dbLogger.With(fields...), nil
}

// GetWorkerLogger creates a logger with its own file in the session directory.
// A no-op logger is returned when the file cannot be created.
func (lm *Manager) GetWorkerLogger(name string) *zap.Logger {
	log, err := lm.initLogger(filepath.Join(lm.getOrCreateSessionDir(), name+".log"))
	if err != nil {
		return zap.NewNop()
	}

	return log.With(zap.String("worker", name))
}

// GetInstanceID returns the unique instance identifier for this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// GetCurrentSessionDir returns the current session directory.
func (lm *Manager) GetCurrentSessionDir() string {
	return lm.getOrCreateSessionDir()
}

// Close closes every log file opened by the manager.
func (lm *Manager) Close() {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for _, f := range lm.files {
		_ = f.Sync()
		_ = f.Close()
	}

	lm.files = nil
}

// setupLogDirectories prunes old sessions and creates a new session directory.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.pruneSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	dir := filepath.Join(lm.logDir, time.Now().Format(sessionLayout))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	lm.mu.Lock()
	lm.sessionDir = dir
	lm.mu.Unlock()

	return nil
}

func (lm *Manager) getOrCreateSessionDir() string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.sessionDir != "" {
		return lm.sessionDir
	}

	dir := filepath.Join(lm.logDir, time.Now().Format(sessionLayout))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return lm.logDir
	}

	lm.sessionDir = dir

	return dir
}

func (lm *Manager) initLogger(path string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	f, err := logger.OpenCappedFile(path, lm.maxLogLines)
	if err != nil {
		return nil, err
	}

	lm.mu.Lock()
	lm.files = append(lm.files, f)
	lm.mu.Unlock()

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(f),
		level,
	)

	if lm.traceErrors {
		core = zapcore.NewTee(core, NewSpanCore(level))
	}

	return zap.New(
		core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Development(),
	), nil
}

// pruneSessions removes the oldest session directories so that, together with
// the session about to be created, at most maxLogsToKeep remain.
func (lm *Manager) pruneSessions() error {
	sessions, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	keep := max(lm.maxLogsToKeep-1, 0)
	if len(sessions) <= keep {
		return nil
	}

	modTimes := make(map[string]time.Time, len(sessions))
	for _, s := range sessions {
		if info, err := os.Stat(s); err == nil {
			modTimes[s] = info.ModTime()
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return modTimes[sessions[i]].Before(modTimes[sessions[j]])
	})

	for _, s := range sessions[:len(sessions)-keep] {
		if err := os.RemoveAll(s); err != nil {
			return err
		}
	}

	return nil
}

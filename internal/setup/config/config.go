package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.3.0"

// EnvPrefix is the prefix of environment variables that override file values.
// A double underscore separates nested keys, e.g. GLYPH_BOT__DISCORD__TOKEN.
const EnvPrefix = "GLYPH_"

// Current version of the config files.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	Bot    BotConfig    `koanf:"bot"`
}

// CommonConfig contains configuration shared between the bot and the db tool.
type CommonConfig struct {
	// Version of the common config.
	Version     int         `koanf:"version"`
	Debug       Debug       `koanf:"debug"`
	PostgreSQL  PostgreSQL  `koanf:"postgresql"`
	Redis       Redis       `koanf:"redis"`
	Perspective Perspective `koanf:"perspective"`
	Gemini      Gemini      `koanf:"gemini"`
	Uptrace     Uptrace     `koanf:"uptrace"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Enables test mode (debug guild, verbose logging).
	TestMode   bool       `koanf:"test_mode"`
	Discord    Discord    `koanf:"discord"`
	Moderation Moderation `koanf:"moderation"`
	Cache      Cache      `koanf:"cache"`
	Queue      Queue      `koanf:"queue"`
	Stats      Stats      `koanf:"stats"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Full connection URL. Takes precedence over the discrete fields when set.
	URL string `koanf:"url"`
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
	// Connection attempts made at startup before giving up.
	ConnectAttempts int `koanf:"connect_attempts"`
	// Delay between startup connection attempts in milliseconds.
	ConnectDelay int `koanf:"connect_delay"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Perspective contains the comment analyzer API configuration.
type Perspective struct {
	// API key for the comment analyzer.
	APIKey string `koanf:"api_key"`
	// Optional endpoint override.
	Endpoint string `koanf:"endpoint"`
	// Languages hint sent with each request.
	Languages []string `koanf:"languages"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
}

// Gemini contains the generative model configuration used by the gemini scorer.
type Gemini struct {
	// API key for the generative language API.
	APIKey string `koanf:"api_key"`
	// Model name, e.g. gemini-2.0-flash.
	Model string `koanf:"model"`
	// Sampling temperature.
	Temperature float32 `koanf:"temperature"`
}

// Uptrace configures trace export. Tracing stays local when the DSN is empty.
type Uptrace struct {
	// Project DSN, e.g. https://<token>@api.uptrace.dev?grpc=4317
	DSN string `koanf:"dsn"`
	// Deployment environment attached to every span.
	Environment string `koanf:"environment"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Only guild handled while running in test mode. Zero handles every guild.
	DebugGuildID uint64 `koanf:"debug_guild_id"`
}

// Moderation configures the classification pipeline and the action workflow.
type Moderation struct {
	// Scoring backend: "perspective" or "gemini".
	Scorer string `koanf:"scorer"`
	// Attributes requested from the scorer.
	Attributes []string `koanf:"attributes"`
	// Interval between classifier ticks in milliseconds.
	ScanInterval int `koanf:"scan_interval"`
	// Mean score above which a message is flagged.
	AverageThreshold float64 `koanf:"average_threshold"`
	// Single attribute score above which a message is flagged.
	SpikeThreshold float64 `koanf:"spike_threshold"`
	// Timeout applied by the timeout action in minutes.
	TimeoutDuration int `koanf:"timeout_duration"`
	// Delay before restarting a crashed classifier loop in milliseconds.
	RestartDelay int `koanf:"restart_delay"`
	// Resolution tracker backend: "database" or "memory".
	Tracker string `koanf:"tracker"`
	// Seconds after which a pending claim may be taken over by another press.
	ClaimLease int `koanf:"claim_lease"`
}

// Cache configures the guild settings cache.
type Cache struct {
	// Backend: "memory" or "redis".
	Backend string `koanf:"backend"`
	// Maximum entries held by the memory backend.
	Size int `koanf:"size"`
	// Entry lifetime in seconds.
	TTL int `koanf:"ttl"`
}

// Queue configures the moderation queue backend.
type Queue struct {
	// Backend: "memory" or "redis".
	Backend string `koanf:"backend"`
	// Redis list key used by the redis backend.
	Key string `koanf:"key"`
}

// Stats configures the scanned message counter.
type Stats struct {
	// Flush interval in seconds.
	FlushInterval int `koanf:"flush_interval"`
}

// LoadConfig loads the configuration from the config files and the environment.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".glyph",
		homeDir + "/.glyph/config",
		"/etc/glyph/config",
		"/app/config",
		"config",
		".",
	}

	// Load all config files, each under its own top-level key
	var usedConfigPath string

	configFiles := []string{"common", "bot"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)

			sub := koanf.New(".")
			if err := sub.Load(file.Provider(configPath), toml.Parser()); err != nil {
				continue
			}

			if err := k.MergeAt(sub, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s.toml: %w", configName, err)
			}

			configLoaded = true

			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	// Environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	config.ApplyDefaults()

	return &config, usedConfigPath, nil
}

// ApplyDefaults fills zero values with the documented defaults.
func (c *Config) ApplyDefaults() {
	d := &c.Common.Debug
	if d.LogLevel == "" {
		d.LogLevel = "info"
	}

	if c.Bot.TestMode {
		d.LogLevel = "debug"
	}

	if d.MaxLogsToKeep == 0 {
		d.MaxLogsToKeep = 10
	}

	if d.MaxLogLines == 0 {
		d.MaxLogLines = 10000
	}

	pg := &c.Common.PostgreSQL
	if pg.ConnectAttempts == 0 {
		pg.ConnectAttempts = 3
	}

	if pg.ConnectDelay == 0 {
		pg.ConnectDelay = 3000
	}

	if c.Common.Perspective.RequestTimeout == 0 {
		c.Common.Perspective.RequestTimeout = 10000
	}

	if c.Common.Uptrace.Environment == "" {
		c.Common.Uptrace.Environment = "production"
	}

	if c.Common.Gemini.Model == "" {
		c.Common.Gemini.Model = "gemini-2.0-flash"
	}

	m := &c.Bot.Moderation
	if m.Scorer == "" {
		m.Scorer = "perspective"
	}

	if len(m.Attributes) == 0 {
		m.Attributes = []string{"TOXICITY", "SEVERE_TOXICITY", "INSULT", "THREAT"}
	}

	if m.ScanInterval == 0 {
		m.ScanInterval = 1100
	}

	if m.AverageThreshold == 0 {
		m.AverageThreshold = 0.5
	}

	if m.SpikeThreshold == 0 {
		m.SpikeThreshold = 0.7
	}

	if m.TimeoutDuration == 0 {
		m.TimeoutDuration = 24 * 60
	}

	if m.RestartDelay == 0 {
		m.RestartDelay = 5000
	}

	if m.Tracker == "" {
		m.Tracker = "database"
	}

	if m.ClaimLease == 0 {
		m.ClaimLease = 300
	}

	if c.Bot.Cache.Backend == "" {
		c.Bot.Cache.Backend = "memory"
	}

	if c.Bot.Cache.Size == 0 {
		c.Bot.Cache.Size = 1000
	}

	if c.Bot.Cache.TTL == 0 {
		c.Bot.Cache.TTL = 600
	}

	if c.Bot.Queue.Backend == "" {
		c.Bot.Queue.Backend = "memory"
	}

	if c.Bot.Queue.Key == "" {
		c.Bot.Queue.Key = "moderation:queue"
	}

	if c.Bot.Stats.FlushInterval == 0 {
		c.Bot.Stats.FlushInterval = 60
	}
}

// envKey maps GLYPH_BOT__DISCORD__TOKEN to bot.discord.token.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/glyphbot/glyph/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}

package redis

import (
	"fmt"
	"sync"

	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// CacheDBIndex holds the guild settings cache.
	CacheDBIndex = 0

	// StatsDBIndex holds counters such as the number of scanned messages.
	StatsDBIndex = 1

	// QueueDBIndex holds the durable moderation queue.
	QueueDBIndex = 2
)

// Manager lazily creates one rueidis client per database index and reuses it.
type Manager struct {
	clients map[int]rueidis.Client
	option  rueidis.ClientOption
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewManager creates a manager for the configured Redis server.
func NewManager(cfg *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		option: rueidis.ClientOption{
			InitAddress:  []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
			Username:     cfg.Username,
			Password:     cfg.Password,
			ClientName:   "glyph",
			DisableCache: true,
		},
		logger: logger.Named("redis"),
	}
}

// GetClient returns the client for dbIndex, connecting on first use.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[dbIndex]; ok {
		return client, nil
	}

	opt := m.option
	opt.SelectDB = dbIndex

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Info("Created new Redis client", zap.Int("dbIndex", dbIndex))

	return client, nil
}

// Close shuts down every client created so far. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dbIndex, client := range m.clients {
		client.Close()
		delete(m.clients, dbIndex)
		m.logger.Info("Closed Redis client", zap.Int("dbIndex", dbIndex))
	}
}

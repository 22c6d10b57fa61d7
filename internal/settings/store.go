package settings

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// loadTimeout bounds a storage load shared by concurrent callers.
const loadTimeout = 15 * time.Second

// Repository is the durable store of guild settings.
type Repository interface {
	Get(ctx context.Context, guildID snowflake.ID, autoInsert bool) (*types.GuildSetting, error)
	Upsert(ctx context.Context, setting *types.GuildSetting) error
}

// Store serves guild settings from a cache in front of the repository.
// Reads go through the cache and writes go to the repository first, then
// replace the cached entry.
type Store struct {
	repo   Repository
	cache  Cache
	group  singleflight.Group
	logger *zap.Logger

	// writes counts completed Set calls per guild. A load only caches what it
	// read when no write finished in the meantime. mu also orders cache writes.
	mu     sync.Mutex
	writes map[snowflake.ID]uint64
}

// NewStore creates a settings store.
func NewStore(repo Repository, cache Cache, logger *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		cache:  cache,
		logger: logger.Named("settings"),
		writes: make(map[snowflake.ID]uint64),
	}
}

// Get returns the settings of a guild. A guild without a stored row yields
// nil unless autoInsert is set, in which case the default row is created
// and returned. Concurrent misses for the same guild share one load.
func (s *Store) Get(ctx context.Context, guildID snowflake.ID, autoInsert bool) (*types.GuildSetting, error) {
	if setting := s.fromCache(ctx, guildID); setting != nil {
		return setting, nil
	}

	key := strconv.FormatUint(uint64(guildID), 10) + ":" + strconv.FormatBool(autoInsert)

	// The shared load outlives any single caller's cancellation and each
	// caller stops waiting when its own context ends.
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		return s.load(loadCtx, guildID, autoInsert)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if res.Err != nil {
		return nil, res.Err
	}

	setting, _ := res.Val.(*types.GuildSetting)
	if setting == nil {
		return nil, nil
	}

	// Callers share the loaded value, so each gets its own copy
	out := *setting

	return &out, nil
}

// Set writes the full settings record and replaces the cached entry.
// The cache is left untouched when the write fails.
func (s *Store) Set(ctx context.Context, setting *types.GuildSetting) error {
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes[setting.GuildID]++
	s.store(ctx, setting)

	return nil
}

// Reset restores the default settings of a guild.
func (s *Store) Reset(ctx context.Context, guildID snowflake.ID) error {
	return s.Set(ctx, types.DefaultGuildSetting(guildID))
}

// Invalidate drops the cached entry of a guild.
func (s *Store) Invalidate(ctx context.Context, guildID snowflake.ID) error {
	return s.cache.Delete(ctx, guildID)
}

// fromCache returns the cached settings or nil on a miss. Unreadable entries
// are dropped.
func (s *Store) fromCache(ctx context.Context, guildID snowflake.ID) *types.GuildSetting {
	data, ok, err := s.cache.Get(ctx, guildID)
	if err != nil {
		s.logger.Warn("Settings cache read failed",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))

		return nil
	}

	if !ok {
		return nil
	}

	setting, err := decode(data)
	if err != nil {
		if !errors.Is(err, ErrPayloadVersion) {
			s.logger.Warn("Dropping unreadable settings cache entry",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Error(err))
		}

		if err := s.cache.Delete(ctx, guildID); err != nil {
			s.logger.Warn("Failed to drop settings cache entry", zap.Error(err))
		}

		return nil
	}

	return setting
}

func (s *Store) load(ctx context.Context, guildID snowflake.ID, autoInsert bool) (*types.GuildSetting, error) {
	s.mu.Lock()
	before := s.writes[guildID]
	s.mu.Unlock()

	setting, err := s.repo.Get(ctx, guildID, autoInsert)
	if err != nil {
		return nil, err
	}

	if setting == nil {
		return nil, nil
	}

	s.mu.Lock()
	if s.writes[guildID] == before {
		s.store(ctx, setting)
	}
	s.mu.Unlock()

	return setting, nil
}

func (s *Store) store(ctx context.Context, setting *types.GuildSetting) {
	data, err := encode(setting)
	if err != nil {
		s.logger.Error("Failed to encode settings", zap.Error(err))
		return
	}

	if err := s.cache.Set(ctx, setting.GuildID, data); err != nil {
		s.logger.Warn("Failed to cache settings",
			zap.Uint64("guildID", uint64(setting.GuildID)),
			zap.Error(err))

		// A stale entry must not outlive a write
		_ = s.cache.Delete(ctx, setting.GuildID)
	}
}

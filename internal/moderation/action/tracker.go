package action

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/glyphbot/glyph/internal/database/models"
	"github.com/glyphbot/glyph/internal/database/types"
)

// Claim identifies a moderator's attempt to act on a flagged message.
type Claim struct {
	GuildID     snowflake.ID
	ChannelID   snowflake.ID
	MessageID   snowflake.ID
	ModeratorID snowflake.ID
	Action      Action
}

// Tracker guarantees that at most one action runs per flagged message.
type Tracker interface {
	// Claim reports false when the message is resolved or holds a live claim.
	Claim(ctx context.Context, c Claim) (bool, error)
	// Release drops a claim whose action failed so it can be retried.
	Release(ctx context.Context, messageID snowflake.ID) error
	// Resolve makes a claim permanent.
	Resolve(ctx context.Context, messageID snowflake.ID) error
}

type memoryClaim struct {
	resolved  bool
	claimedAt time.Time
}

// MemoryTracker tracks claims in process memory. A pending claim older than
// the lease can be taken over.
type MemoryTracker struct {
	mu     sync.Mutex
	claims map[snowflake.ID]memoryClaim
	lease  time.Duration
	now    func() time.Time
}

var _ Tracker = (*MemoryTracker)(nil)

// NewMemoryTracker creates an empty tracker.
func NewMemoryTracker(lease time.Duration) *MemoryTracker {
	return &MemoryTracker{
		claims: make(map[snowflake.ID]memoryClaim),
		lease:  lease,
		now:    time.Now,
	}
}

func (t *MemoryTracker) Claim(_ context.Context, c Claim) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if existing, ok := t.claims[c.MessageID]; ok {
		if existing.resolved || now.Sub(existing.claimedAt) <= t.lease {
			return false, nil
		}
	}

	t.claims[c.MessageID] = memoryClaim{claimedAt: now}

	return true, nil
}

func (t *MemoryTracker) Release(_ context.Context, messageID snowflake.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.claims[messageID]; ok && !existing.resolved {
		delete(t.claims, messageID)
	}

	return nil
}

func (t *MemoryTracker) Resolve(_ context.Context, messageID snowflake.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.claims[messageID] = memoryClaim{resolved: true, claimedAt: t.now()}

	return nil
}

// DatabaseTracker stores claims in the flagged_message_resolutions table so
// they hold across processes and restarts.
type DatabaseTracker struct {
	model *models.ResolutionModel
	lease time.Duration
}

var _ Tracker = (*DatabaseTracker)(nil)

// NewDatabaseTracker creates a tracker over the resolution model.
func NewDatabaseTracker(model *models.ResolutionModel, lease time.Duration) *DatabaseTracker {
	return &DatabaseTracker{model: model, lease: lease}
}

func (t *DatabaseTracker) Claim(ctx context.Context, c Claim) (bool, error) {
	return t.model.Claim(ctx, &types.FlaggedMessageResolution{
		MessageID:   c.MessageID,
		GuildID:     c.GuildID,
		ChannelID:   c.ChannelID,
		Action:      string(c.Action),
		ModeratorID: c.ModeratorID,
	}, t.lease)
}

func (t *DatabaseTracker) Release(ctx context.Context, messageID snowflake.ID) error {
	return t.model.Release(ctx, messageID)
}

func (t *DatabaseTracker) Resolve(ctx context.Context, messageID snowflake.ID) error {
	return t.model.MarkResolved(ctx, messageID)
}

package database

import (
	"github.com/glyphbot/glyph/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	guildSetting *models.GuildSettingModel
	resolution   *models.ResolutionModel
	warn         *models.WarnModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		guildSetting: models.NewGuildSetting(db, logger),
		resolution:   models.NewResolution(db, logger),
		warn:         models.NewWarn(db, logger),
	}
}

// GuildSetting returns the guild setting model repository.
func (r *Repository) GuildSetting() *models.GuildSettingModel {
	return r.guildSetting
}

// Resolution returns the flagged message resolution model repository.
func (r *Repository) Resolution() *models.ResolutionModel {
	return r.resolution
}

// Warn returns the warn model repository.
func (r *Repository) Warn() *models.WarnModel {
	return r.warn
}

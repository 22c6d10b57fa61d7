package telemetry

import (
	"context"

	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
)

// SetupTracing configures span export to Uptrace. The returned function
// flushes and stops the exporter. Nothing is exported without a DSN.
func SetupTracing(serviceType ServiceType, cfg *config.Uptrace) func(ctx context.Context) error {
	if cfg.DSN == "" {
		return func(context.Context) error { return nil }
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.DSN),
		uptrace.WithServiceName("glyph-"+serviceType.String()),
		uptrace.WithServiceVersion(config.RepositoryVersion),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)

	return uptrace.Shutdown
}

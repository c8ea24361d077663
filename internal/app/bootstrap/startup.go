// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/tallyhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time initialization after the store is connected and
// before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
	})
	cur := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", cur.Ping),
		zap.Duration("short", cur.Short),
		zap.Duration("medium", cur.Medium))

	if deps.MongoDatabase != nil {
		ok, err := supportsChangeStreams(ctx, deps.MongoDatabase)
		switch {
		case err != nil:
			logger.Warn("could not check for change stream support", zap.Error(err))
		case !ok:
			logger.Warn("MongoDB is not a replica set; live feeds will fail until it is")
		}
	}

	logger.Info("synchronized store ready", zap.String("backend", deps.Backend))
	return nil
}

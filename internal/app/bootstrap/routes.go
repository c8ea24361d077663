// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	countersfeature "github.com/dalemusser/tallyhub/internal/app/features/counters"
	errorsfeature "github.com/dalemusser/tallyhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/tallyhub/internal/app/features/health"
	"github.com/dalemusser/tallyhub/internal/app/system/identity"
	"github.com/dalemusser/tallyhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// /health is served without a session. Everything under /api passes through
// the participant session, which issues an anonymous id on first contact.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := identity.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	errLog := errorsfeature.NewErrorLogger(logger)
	limiter := ratelimit.New(float64(appCfg.MutationRate), appCfg.MutationBurst)

	r := chi.NewRouter()

	healthHandler := healthfeature.NewHandler(deps.Store, deps.Backend, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Group(func(r chi.Router) {
		r.Use(sessionMgr.EnsureParticipant)

		countersHandler := countersfeature.NewHandler(deps.Store, appCfg.BaseURL, errLog, logger)
		r.Mount("/api/groups", countersfeature.Routes(countersHandler, limiter))
	})

	return r, nil
}

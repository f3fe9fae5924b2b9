package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const readinessTimeout = 3 * time.Second

const envHeader = "X-Storefront-Env"

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(context.Context) error
}

// ReadinessCheck names one dependency of the readiness probe.
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency concurrently. Checks with a
// nil Pinger are reported as skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make([]string, len(checks))
		group, gctx := errgroup.WithContext(ctx)
		for i, check := range checks {
			if check.Pinger == nil {
				results[i] = "skipped"
				continue
			}
			group.Go(func() error {
				if err := check.Pinger.Ping(gctx); err != nil {
					results[i] = "down"
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable")
				}
				results[i] = "ok"
				return nil
			})
		}

		err := group.Wait()
		status := make(map[string]string, len(checks))
		for i, check := range checks {
			if results[i] == "" {
				results[i] = "unknown"
			}
			status[check.Name] = results[i]
		}
		if err != nil {
			typed := pkgerrors.As(err)
			responses.WriteError(r.Context(), logg, w, typed.WithDetails(status))
			return
		}

		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}

package muxhandlers

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/vitalvas/routeprobe/mux"
)

// RecoveryConfig configures the Recovery middleware behaviour.
type RecoveryConfig struct {
	// Logger receives an error entry for every recovered panic. When nil,
	// nothing is logged.
	Logger logrus.FieldLogger
}

// RecoveryMiddleware returns a middleware that recovers from panics in
// downstream handlers. The client receives 500 and the panic is reported as
// a FilterRecovery rejection. http.ErrAbortHandler is re-panicked.
func RecoveryMiddleware(cfg RecoveryConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				if cfg.Logger != nil {
					cfg.Logger.WithFields(logrus.Fields{
						"method": r.Method,
						"path":   r.URL.Path,
						"panic":  rec,
					}).Error("recovered from handler panic")
				}

				reject(w, r, FilterRecovery, http.StatusInternalServerError, fmt.Sprintf("panic: %v", rec))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

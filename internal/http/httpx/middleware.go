package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/internal/auth"
	"github.com/MrJamesThe3rd/pharmacy/internal/logging"
)

// RequestLogger logs one line per request and stores a request-scoped logger
// in the context.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), entry)))

			entry.WithFields(logrus.Fields{
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start).String(),
			}).Info("Handled request")
		})
	}
}

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate(tokens TokenParser, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				Error(w, r, log, auth.ErrUnauthorized)
				return
			}

			p, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				Error(w, r, log, auth.ErrUnauthorized)
				return
			}

			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = logging.WithContext(ctx, logging.FromContext(ctx, log).WithField("user_id", p.UserID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWrite lets any authenticated caller read and limits writes to roles.
func RequireWrite(log logrus.FieldLogger, roles ...auth.Role) func(http.Handler) http.Handler {
	return require(log, false, roles)
}

// RequireAll limits every method to roles.
func RequireAll(log logrus.FieldLogger, roles ...auth.Role) func(http.Handler) http.Handler {
	return require(log, true, roles)
}

func require(log logrus.FieldLogger, reads bool, roles []auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				Error(w, r, log, auth.ErrUnauthorized)
				return
			}

			if (reads || !isRead(r.Method)) && !p.Allows(roles...) {
				Error(w, r, log, auth.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isRead(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

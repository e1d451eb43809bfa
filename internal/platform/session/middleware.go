package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/templatemart/api/internal/platform/requestctx"
	"go.uber.org/zap"
)

type contextKey struct{}

// Store abstracts the Manager for the middleware.
type Store interface {
	Load(*http.Request) (*Session, error)
	New() *Session
	Save(http.ResponseWriter, *Session) error
}

// Middleware attaches the session to the request context and writes the cookie just before
// the first byte of the response.
func Middleware(store Store) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := requestctx.Logger(r.Context())

			sess, err := store.Load(r)
			if err != nil || sess == nil {
				if errors.Is(err, ErrExpired) {
					logger.Debug("session expired, starting a new one")
				} else if err != nil {
					logger.Warn("session load failed", zap.Error(err))
				}
				sess = store.New()
			}

			ctx := context.WithValue(r.Context(), contextKey{}, sess)
			ctx = requestctx.WithSessionID(ctx, sess.ID())

			sw := &saveOnWrite{ResponseWriter: w, save: func(w http.ResponseWriter) {
				if err := store.Save(w, sess); err != nil {
					logger.Warn("session save failed", zap.Error(err))
				}
			}}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flush()
		})
	}
}

// FromContext returns the session attached by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

type saveOnWrite struct {
	http.ResponseWriter
	save  func(http.ResponseWriter)
	saved bool
}

func (w *saveOnWrite) flush() {
	if w.saved {
		return
	}
	w.saved = true
	w.save(w.ResponseWriter)
}

func (w *saveOnWrite) WriteHeader(status int) {
	w.flush()
	w.ResponseWriter.WriteHeader(status)
}

func (w *saveOnWrite) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *saveOnWrite) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

package middleware

import (
	"context"
	"maps"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/qxuken/word-puzzles/pkg/logger"
)

// Timeout bounds each request to timeout. Handlers see the deadline on the
// request context; if they have not written anything when it passes, the
// client gets a 504. Writes after the deadline are discarded. Health probes
// are not bounded.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			log := logger.FromContext(r.Context())
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			panicCh := make(chan any, 1)
			tw := &timeoutWriter{w: w, h: make(http.Header)}
			go func() {
				defer close(done)
				defer func() {
					p := recover()
					if p == nil {
						return
					}
					tw.mu.Lock()
					defer tw.mu.Unlock()
					if tw.timedOut {
						log.Error("handler panicked after timeout",
							"method", r.Method,
							"path", r.URL.Path,
							"panic", p,
							"stack", string(debug.Stack()),
						)
						return
					}
					panicCh <- p
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				select {
				case p := <-panicCh:
					// re-raise on the serving goroutine so outer recoverers see it
					panic(p)
				default:
				}
				tw.mu.Lock()
				defer tw.mu.Unlock()
				if !tw.wroteHeader {
					maps.Copy(w.Header(), tw.h)
				}
			case <-ctx.Done():
				tw.mu.Lock()
				select {
				case p := <-panicCh:
					tw.mu.Unlock()
					panic(p)
				default:
				}
				defer tw.mu.Unlock()
				tw.timedOut = true
				if !tw.wroteHeader {
					log.Warn("request timed out",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}` + "\n"))
				}
			}
		})
	}
}

// timeoutWriter gives the handler goroutine its own header map. Headers are
// copied to the real writer when the status is written, so the serving
// goroutine never shares a map with the handler.
type timeoutWriter struct {
	w           http.ResponseWriter
	h           http.Header
	mu          sync.Mutex
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(b)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wroteHeader = true
	maps.Copy(tw.w.Header(), tw.h)
	tw.w.WriteHeader(code)
}

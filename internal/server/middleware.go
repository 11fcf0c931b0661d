package server

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dgellow/riot-front/internal/crypto"
	jsonwriter "github.com/dgellow/riot-front/internal/json"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/session"
	"github.com/google/uuid"
)

const (
	// CSRFHeader carries the CSRF token on state-changing browser requests
	CSRFHeader = "X-CSRF-Token"
	// RequestIDHeader correlates a response with its log line
	RequestIDHeader = "X-Request-Id"

	mcpSessionHeader = "Mcp-Session-Id"
	maxRequestIDLen  = 128
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// corsPolicy answers cross-origin requests. Credentials only ever go to
// explicitly allowed origins; with none configured every origin is allowed
// without credentials.
type corsPolicy struct {
	origins map[string]bool
}

func (p corsPolicy) apply(h http.Header, origin string) {
	switch {
	case origin != "" && p.origins[origin]:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	case len(p.origins) == 0:
		h.Set("Access-Control-Allow-Origin", "*")
	}

	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", strings.Join([]string{
		"Content-Type", "Authorization", CSRFHeader, mcpSessionHeader, "mcp-protocol-version",
	}, ", "))
	h.Set("Access-Control-Expose-Headers", mcpSessionHeader+", "+RequestIDHeader)
	h.Set("Access-Control-Max-Age", "3600")
}

// NewCORSMiddleware adds CORS headers to responses and answers preflights
func NewCORSMiddleware(allowedOrigins []string) MiddlewareFunc {
	policy := corsPolicy{origins: make(map[string]bool, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		policy.origins[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy.apply(w.Header(), r.Header.Get("Origin"))
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes written
// while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter so http.ResponseController
// can find optional interfaces
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush implements http.Flusher; streamable MCP responses need it
func (r *responseWriterDelegator) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var _ http.ResponseWriter = (*responseWriterDelegator)(nil)
var _ http.Flusher = (*responseWriterDelegator)(nil)

// requestID returns the caller's request id, assigning a fresh one to r
// when it carries none
func requestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLen {
		id = uuid.NewString()
		r.Header.Set(RequestIDHeader, id)
	}
	return id
}

// NewLoggerMiddleware logs one line per request and echoes its request id.
// Query strings are never logged because pasted redirect URLs may carry
// tokens.
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := requestID(r)
			w.Header().Set(RequestIDHeader, id)
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			log.LogInfoWithFields(prefix, "request", map[string]any{
				"request_id":  id,
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			})
		})
	}
}

// NewRecoverMiddleware turns panics into a 500 and logs the stack
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.LogErrorWithFields(prefix, "Recovered from panic", map[string]any{
						"panic":      err,
						"path":       r.URL.Path,
						"request_id": r.Header.Get(RequestIDHeader),
						"stack":      string(debug.Stack()),
					})
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewRequireSessionMiddleware rejects requests that carry no live session
// and puts the session handle in the request context for the rest.
func NewRequireSessionMiddleware(binder *SessionBinder, realm string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle, ok := binder.Resolve(r)
			if !ok {
				jsonwriter.WriteUnauthorizedBearer(w, realm, "No active session. Sign in first.")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithHandle(r.Context(), handle)))
		})
	}
}

// NewCSRFMiddleware requires a valid CSRF token on every unsafe method
func NewCSRFMiddleware(csrf *crypto.CSRFProtection) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if !csrf.Validate(r.Header.Get(CSRFHeader)) {
				log.LogWarnWithFields("csrf", "Rejected request without valid CSRF token", map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
				})
				jsonwriter.WriteForbidden(w, "Missing or invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authgate"
)

// DefaultCookieName is the session cookie consulted when no Authorization
// header is present.
const DefaultCookieName = "authgate_session"

// Server wires engine operations onto a chi router.
type Server struct {
	engine     *authgate.Engine
	logger     *slog.Logger
	metrics    http.Handler
	cookieName string
}

// Option customizes a [Server].
type Option func(*Server)

// WithLogger sets the request logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsHandler mounts a handler on GET /metrics, typically the
// Prometheus exporter's Handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) Option {
	return func(s *Server) { s.cookieName = name }
}

// NewServer creates a Server around a built engine.
func NewServer(engine *authgate.Engine, opts ...Option) *Server {
	s := &Server{
		engine:     engine,
		logger:     slog.Default(),
		cookieName: DefaultCookieName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.clientMeta)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Route("/webauthn", func(r chi.Router) {
		r.Post("/register/start", s.handleRegistrationStart)
		r.Post("/register/finish", s.handleRegistrationFinish)
		r.Post("/login/start", s.handleAuthenticationStart)
		r.Post("/login/finish", s.handleAuthenticationFinish)
	})
	r.Get("/auth", s.handleAuth)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.ServeHTTP)
	}

	return r
}

// clientMeta copies the caller's address and user agent into the request
// context for rate limiting and audit.
func (s *Server) clientMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ip := clientIP(r); ip != "" {
			ctx = authgate.WithClientIP(ctx, ip)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = authgate.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers proxy-set headers over the socket address. The daemon is
// expected to sit behind the reverse proxy it serves.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sessionToken resolves the bearer token from the Authorization header,
// falling back to the session cookie.
func (s *Server) sessionToken(r *http.Request) string {
	const bearer = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearer) {
		return auth[len(bearer):]
	}
	if c, err := r.Cookie(s.cookieName); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("response encoding failed", "error", err, "status", status)
	}
}

// writeEngineError maps an engine error onto its transport representation.
// Bodies carry the error kind and a fixed message per kind; wrapped detail
// stays server-side.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	kind := authgate.Classify(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorResponse{
		ErrorKind: string(kind),
		Message:   messageForKind(kind),
	})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{
		ErrorKind: string(authgate.KindValidation),
		Message:   message,
	})
}

func statusForKind(kind authgate.ErrorKind) int {
	switch kind {
	case authgate.KindValidation:
		return http.StatusBadRequest
	case authgate.KindNotFound:
		return http.StatusNotFound
	case authgate.KindConflict, authgate.KindReplay:
		return http.StatusConflict
	case authgate.KindAuthentication:
		return http.StatusUnauthorized
	case authgate.KindRateLimited:
		return http.StatusTooManyRequests
	case authgate.KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func messageForKind(kind authgate.ErrorKind) string {
	switch kind {
	case authgate.KindValidation:
		return "invalid request"
	case authgate.KindNotFound:
		return "not found"
	case authgate.KindConflict:
		return "conflict"
	case authgate.KindReplay:
		return "credential replay detected"
	case authgate.KindAuthentication:
		return "authentication failed"
	case authgate.KindRateLimited:
		return "too many attempts"
	case authgate.KindTimeout:
		return "temporarily unavailable"
	default:
		return "internal error"
	}
}

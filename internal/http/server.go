package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"finbot/internal/bot"
	"finbot/internal/cache"
	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/middleware/ratelimit"
	"finbot/internal/middleware/security"
	"finbot/internal/middleware/trace"
)

// CommandHandler runs one chat command. *bot.Dispatcher implements it.
type CommandHandler interface {
	Handle(ctx context.Context, msg bot.Message) bot.Reply
}

// ChartSource provides the all-time chart series of a user.
type ChartSource interface {
	ChartSeries(user core.UserID) (core.ChartSeries, error)
}

// Options configures a Server. Commands and Charts are required.
type Options struct {
	Commands CommandHandler
	Charts   ChartSource
	Logger   *log.Logger

	// WebhookSecret, when set, must match the
	// X-Telegram-Bot-Api-Secret-Token header of every webhook call.
	WebhookSecret      string
	RateLimitPerMinute int
	DedupCacheSize     int
	DedupTTL           time.Duration

	// Ready is an optional readiness probe for /readyz.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	commands CommandHandler
	charts   ChartSource
	logger   *log.Logger
	secret   string
	ready    func(ctx context.Context) error

	updates      *cache.LRUCache[*pendingUpdate]
	cacheManager *cache.Manager
	rateLimiter  *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

func NewServer(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.DedupCacheSize <= 0 {
		opts.DedupCacheSize = 1024
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 24 * time.Hour
	}

	s := &Server{
		commands:     opts.Commands,
		charts:       opts.Charts,
		logger:       opts.Logger.WithComponent(log.ComponentHTTP),
		secret:       opts.WebhookSecret,
		ready:        opts.Ready,
		updates:      cache.NewLRUCache[*pendingUpdate](opts.DedupCacheSize, opts.DedupTTL),
		cacheManager: cache.NewManager(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:     security.NewDetector(),
		started:      time.Now(),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)
	s.cacheManager.Register(s.updates)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /api/users/{id}/chart", s.handleChart)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// ListenAndServe serves until Shutdown; http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops background cleanup and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

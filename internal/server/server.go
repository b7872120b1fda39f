// Package server exposes the export pipeline over HTTP: one orchestrator per
// session, progress over SSE, stored artifacts and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmitchellscott/chatsnap/internal/capture"
	"github.com/rmitchellscott/chatsnap/internal/config"
	"github.com/rmitchellscott/chatsnap/internal/export"
	"github.com/rmitchellscott/chatsnap/internal/logging"
	"github.com/rmitchellscott/chatsnap/internal/metrics"
	"github.com/rmitchellscott/chatsnap/internal/middleware"
	"github.com/rmitchellscott/chatsnap/internal/orchestrator"
	"github.com/rmitchellscott/chatsnap/internal/sse"
	"github.com/rmitchellscott/chatsnap/internal/storage"
	"github.com/rmitchellscott/chatsnap/internal/utils"
)

// maxRequestBytes bounds export request bodies, which may carry a raster.
const maxRequestBytes = 32 << 20

// Dependencies are the pipeline parts shared by every session.
type Dependencies struct {
	Config   config.Config
	Capture  capture.Capturer
	Encoders orchestrator.EncoderLookup
	Delivery orchestrator.Deliverer
	Storage  storage.Backend
	Metrics  *metrics.Recorder
	Gatherer prometheus.Gatherer
	Events   *sse.Service

	// URLPolicy guards image URLs the server fetches on a client's behalf.
	URLPolicy utils.URLPolicy
}

// Server routes HTTP requests to per-session orchestrators.
type Server struct {
	deps    Dependencies
	namer   *export.Namer
	limiter *middleware.ExportRateLimiter

	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time

	exportTimeout time.Duration
}

// session is one client's orchestrator. lastUsed holds unix nanoseconds of
// the last request or export event.
type session struct {
	orch     *orchestrator.Orchestrator
	lastUsed atomic.Int64
}

// New creates a server. A nil Events service gets a fresh one.
func New(deps Dependencies) *Server {
	if deps.Events == nil {
		deps.Events = sse.NewService()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		deps:          deps,
		namer:         export.NewNamer(deps.Config.ProductName, nil),
		limiter:       middleware.NewExportRateLimiter(deps.Config.ExportRateLimit),
		sessions:      make(map[string]*session),
		now:           time.Now,
		exportTimeout: 2*deps.Config.RenderTimeout + time.Minute,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	if mode := s.deps.Config.GinMode; mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Cache-Control"}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api")
	api.POST("/exports", s.limiter.RateLimit(), middleware.RequestSizeLimit(maxRequestBytes), s.createExport)
	api.GET("/exports/files/:name", s.downloadFile)
	api.GET("/sessions/:id", s.sessionState)
	api.GET("/sessions/:id/events", s.sessionEvents)
	api.GET("/formats", s.listFormats)
	api.GET("/health", s.health)
	api.GET("/version", s.version)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go s.deps.Events.KeepAlive(ctx, 30*time.Second)
	stop := make(chan struct{})
	defer close(stop)
	go s.limiter.CleanupRoutine(stop)

	errCh := make(chan error, 1)
	go func() {
		logging.InfoWithComponent(logging.ComponentAPI, "Listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.InfoWithComponent(logging.ComponentAPI, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// session returns the orchestrator for id, creating it on first use. An
// empty id allocates a new session.
func (s *Server) session(id string) (string, *orchestrator.Orchestrator) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		s.touch(sess)
		return id, sess.orch
	}

	cfg := s.deps.Config
	sess := &session{orch: orchestrator.New(orchestrator.Options{
		Capture:            s.deps.Capture,
		Encoders:           s.deps.Encoders,
		Delivery:           s.deps.Delivery,
		Namer:              s.namer,
		Metrics:            s.deps.Metrics,
		SuccessWindow:      cfg.SuccessWindow,
		DefaultQuality:     cfg.DefaultQuality,
		DefaultGIFQuality:  cfg.DefaultGIFQuality,
		CrossOriginEnabled: true,
	})}
	s.touch(sess)
	sess.orch.Subscribe(func(e orchestrator.Event) {
		s.touch(sess)
		s.deps.Events.BroadcastToSession(id, sse.Event{Type: "export", Data: e})
	})
	s.sessions[id] = sess
	logging.DebugWithComponent(logging.ComponentAPI, "Session created", "session_id", id)
	return id, sess.orch
}

func (s *Server) touch(sess *session) {
	sess.lastUsed.Store(s.now().UnixNano())
}

func (s *Server) lookupSession(id string) (*orchestrator.Orchestrator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	s.touch(sess)
	return sess.orch, true
}

// EvictIdleSessions drops sessions that are Idle, have no event stream
// attached and were last used more than maxIdle ago. It returns how many
// were dropped.
func (s *Server) EvictIdleSessions(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Load() > cutoff || sess.orch.State() != orchestrator.StateIdle {
			continue
		}
		if s.deps.Events.GetSessionClientCount(id) > 0 {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	if evicted > 0 {
		logging.DebugWithComponent(logging.ComponentAPI, "Evicted idle sessions", "count", evicted, "remaining", len(s.sessions))
	}
	return evicted
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

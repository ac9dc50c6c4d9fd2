package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"optionflow/config"
	"optionflow/logger"
	"optionflow/marks"
)

const defaultLogHistory = 200

// Server hosts the Gin-powered JSON API exposing the latest portfolio state:
// valued positions, refresh progress, cached marks and refused import rows.
type Server struct {
	cfg        config.DashboardConfig
	log        *logger.Log
	store      *Store
	cache      *marks.Cache
	refresher  *marks.Refresher
	logStore   *logStore
	httpServer *http.Server
}

// NewServer constructs a dashboard server when the dashboard feature is
// enabled. When it is disabled the returned server is nil.
func NewServer(cfg config.DashboardConfig, log *logger.Log, store *Store, cache *marks.Cache, refresher *marks.Refresher) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	logStore := newLogStore(defaultLogHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:       cfg,
		log:       log,
		store:     store,
		cache:     cache,
		refresher: refresher,
		logStore:  logStore,
	}, nil
}

// Run starts the dashboard HTTP server and blocks until the provided context
// is cancelled or the underlying HTTP server exits with an error.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}

	defer s.cleanup()

	router, err := s.buildRouter(appName)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

func (s *Server) cleanup() {
	if s.logStore != nil {
		s.logStore.close()
	}
}

// Address reports the network address the dashboard server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter(appName string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	// Allow running behind load balancers by trusting no proxies by default;
	// users can override Gin's trusted proxy list via the GIN_TRUSTED_PROXIES
	// environment variable if needed.
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "app": appName})
	})

	router.GET("/api/positions", func(c *gin.Context) {
		valuations, portfolio, updatedAt := s.store.Positions()
		c.JSON(http.StatusOK, gin.H{
			"positions":        valuations,
			"portfolio_greeks": portfolio,
			"updated_at":       updatedAt.Format(time.RFC3339Nano),
		})
	})

	router.GET("/api/progress", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.refresher.Progress())
	})

	router.GET("/api/marks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"marks": s.cache.Snapshot()})
	})

	router.GET("/api/excluded", func(c *gin.Context) {
		loadID, excluded := s.store.Excluded()
		c.JSON(http.StatusOK, gin.H{
			"load_id":  loadID,
			"excluded": excluded,
			"dropped":  s.store.Dropped(),
		})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		logsSnapshot := s.logStore.snapshot()
		payload := make([]gin.H, 0, len(logsSnapshot))
		for _, l := range logsSnapshot {
			payload = append(payload, gin.H{
				"timestamp": l.Timestamp.Format(time.RFC3339Nano),
				"level":     l.Level,
				"component": l.Component,
				"message":   l.Message,
				"fields":    l.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"logs": payload})
	})

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}

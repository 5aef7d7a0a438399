// Package api serves stored round results over HTTP.
//
// Every endpoint is read-only. Results are addressed by round; the run
// defaults to the latest completed run of that round and can be chosen with
// ?run=<id>.
//
//	GET /v1/health
//	GET /v1/runs
//	GET /v1/runs/:run
//	GET /v1/rounds/:round/standings
//	GET /v1/rounds/:round/matches
//	GET /v1/rounds/:round/matches/:id
//	GET /v1/rounds/:round/matches/:id/as/:strategy
//	GET /metrics
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gauntlet/internal/game"
	"gauntlet/internal/standings"
	"gauntlet/internal/store"
)

// Reader is the read side of the result store.
type Reader interface {
	ListRunIDs() ([]string, error)
	LoadRun(runID string) (store.Run, error)
	LatestRun(round game.RoundNumber) (string, error)
	LoadStandings(round game.RoundNumber, runID string) (standings.Leaderboard, error)
	LoadMatches(round game.RoundNumber, runID string) ([]game.MatchResult, error)
	LoadMatch(round game.RoundNumber, runID, matchID string) (game.MatchResult, error)
}

// Server wires the handlers to a gin engine.
type Server struct {
	reader   Reader
	registry *prometheus.Registry
	log      zerolog.Logger
	engine   *gin.Engine
}

// NewServer builds the router. registry may be nil, in which case /metrics
// is not mounted. Otherwise the stored rounds are exported on it as
// gauntlet_stored_* gauges.
func NewServer(reader Reader, registry *prometheus.Registry, log zerolog.Logger) *Server {
	s := &Server{reader: reader, registry: registry, log: log.With().Str("component", "api").Logger()}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	v1 := r.Group("/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/runs", s.handleRuns)
	v1.GET("/runs/:run", s.handleRun)

	rounds := v1.Group("/rounds/:round")
	rounds.GET("/standings", s.handleStandings)
	rounds.GET("/matches", s.handleMatches)
	rounds.GET("/matches/:id", s.handleMatch)
	rounds.GET("/matches/:id/as/:strategy", s.handlePerspective)

	if registry != nil {
		if err := registry.Register(newStoreCollector(reader, s.log)); err != nil {
			s.log.Warn().Err(err).Msg("store metrics not registered")
		}
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("api listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

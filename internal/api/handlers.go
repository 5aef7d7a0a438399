package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gauntlet/internal/game"
	"gauntlet/internal/store"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MatchSummary is a match without its turn log.
type MatchSummary struct {
	ID          string             `json:"id"`
	Players     [2]game.StrategyID `json:"players"`
	Score       [2]int             `json:"score"`
	Status      game.MatchStatus   `json:"status"`
	ForfeitedBy game.Side          `json:"forfeited_by,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Turns       int                `json:"turns"`
}

// MatchesResponse lists the matches of one round of one run.
type MatchesResponse struct {
	RunID   string         `json:"run_id"`
	Round   int            `json:"round"`
	Matches []MatchSummary `json:"matches"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRuns(c *gin.Context) {
	ids, err := s.reader.ListRunIDs()
	if err != nil {
		s.fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": ids})
}

func (s *Server) handleRun(c *gin.Context) {
	run, err := s.reader.LoadRun(c.Param("run"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleStandings(c *gin.Context) {
	round, runID, ok := s.target(c)
	if !ok {
		return
	}
	lb, err := s.reader.LoadStandings(round, runID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "leaderboard": lb})
}

func (s *Server) handleMatches(c *gin.Context) {
	round, runID, ok := s.target(c)
	if !ok {
		return
	}
	matches, err := s.reader.LoadMatches(round, runID)
	if err != nil {
		s.fail(c, err)
		return
	}
	filter := game.StrategyID(c.Query("strategy"))
	resp := MatchesResponse{RunID: runID, Round: int(round), Matches: []MatchSummary{}}
	for _, m := range matches {
		if filter != "" && m.Index(filter) < 0 {
			continue
		}
		resp.Matches = append(resp.Matches, MatchSummary{
			ID:          m.ID,
			Players:     m.Players,
			Score:       m.Score,
			Status:      m.Status,
			ForfeitedBy: m.ForfeitedBy,
			Reason:      m.Reason,
			Turns:       len(m.Turns),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleMatch(c *gin.Context) {
	m, ok := s.match(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handlePerspective(c *gin.Context) {
	m, ok := s.match(c)
	if !ok {
		return
	}
	view, err := m.Perspective(game.StrategyID(c.Param("strategy")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) match(c *gin.Context) (game.MatchResult, bool) {
	round, runID, ok := s.target(c)
	if !ok {
		return game.MatchResult{}, false
	}
	m, err := s.reader.LoadMatch(round, runID, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return game.MatchResult{}, false
	}
	return m, true
}

// target resolves the round path parameter and the run query parameter.
func (s *Server) target(c *gin.Context) (game.RoundNumber, string, bool) {
	round, err := game.ParseRound(c.Param("round"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_round"})
		return 0, "", false
	}
	runID := c.Query("run")
	if runID == "" {
		if runID, err = s.reader.LatestRun(round); err != nil {
			s.fail(c, err)
			return 0, "", false
		}
	}
	return round, runID, true
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, game.ErrNotParticipant):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_participant"})
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}
}

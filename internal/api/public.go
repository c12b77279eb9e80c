package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultLeaderboard = 10
	maxLeaderboard     = 100
)

func (s *Server) handleGlobalPot(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Stats.GlobalPot(c.Request.Context()))
}

func (s *Server) handleLiveStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Stats.LiveStats(c.Request.Context()))
}

func (s *Server) handlePrizePool(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLeaderboard)))
	if err != nil || limit <= 0 {
		limit = defaultLeaderboard
	}
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}

	pool, entries, err := s.svc.PrizePool.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": pool, "entries": entries})
}

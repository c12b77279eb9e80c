package handler

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"santapot/internal/model"
	"santapot/internal/repository"
	"santapot/internal/service"
)

const leaderboardSize = 10

// PotHandler handles /pot.
type PotHandler struct {
	stats *service.StatsService
	pool  *service.PrizePoolService
}

// NewPotHandler creates a new PotHandler.
func NewPotHandler(svc *service.Services) *PotHandler {
	return &PotHandler{stats: svc.Stats, pool: svc.PrizePool}
}

// HandlePot handles /pot: global pot totals and the prize pool leaderboard.
func (h *PotHandler) HandlePot(c tele.Context) error {
	ctx, cancel := handlerContext()
	defer cancel()

	pot := h.stats.GlobalPot(ctx)
	pool, entries, err := h.pool.Leaderboard(ctx, leaderboardSize)
	if err != nil && !errors.Is(err, repository.ErrNoActivePool) {
		return fail(c, "pot", err)
	}
	return c.Reply(FormatPot(pot, pool, entries))
}

// FormatPot renders the pot summary. pool may be nil.
func FormatPot(pot model.GlobalPot, pool *model.PrizePool, entries []*model.PrizeEntry) string {
	var b strings.Builder
	b.WriteString("🎅 Santa's Pot\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💰 Raised: %s from %d donations\n", money(pot.TotalAmount), pot.TotalDonations)
	fmt.Fprintf(&b, "👥 Members: %d\n", pot.TotalUsers)
	if pool == nil {
		b.WriteString("📭 No active prize pool")
		return b.String()
	}

	fmt.Fprintf(&b, "\n🏆 %s: %s, draw %s\n", pool.Name, money(pool.TotalAmount), pool.DrawDate.Format("2006-01-02"))
	medals := []string{"🥇", "🥈", "🥉"}
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s %s: %d tickets\n", rank, e.Username, e.Entries)
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}

package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"santapot/internal/rewards"
	"santapot/internal/service"
)

// AccountHandler handles account and accrual commands.
type AccountHandler struct {
	accounts    *service.AccountService
	accrual     *service.AccrualService
	eligibility *service.EligibilityService
	stats       *service.StatsService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.Services) *AccountHandler {
	return &AccountHandler{
		accounts:    svc.Accounts,
		accrual:     svc.Accrual,
		eligibility: svc.Eligibility,
		stats:       svc.Stats,
	}
}

// HandleStart handles /start [referral code].
// Creates the account on first use and credits the referrer.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, created, err := ensureAccount(ctx, h.accounts, sender, c.Message().Payload)
	if user == nil {
		return fail(c, "start", err)
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎄 Welcome %s!\n\n"+
				"Your account is ready with a %s signup bonus.\n"+
				"Your referral link: %s\n\n"+
				"Commands:\n"+
				"/me - account summary\n"+
				"/daily - daily check-in\n"+
				"/progress - withdrawal requirements\n"+
				"/share <platform> - record a share\n"+
				"/offers - partner offers\n"+
				"/withdraw <amount> <method> <details> - request a payout\n"+
				"/pot - prize pool",
			user.DisplayName(), money(user.Earnings), h.accounts.ReferralLink(user.ReferralCode),
		))
	}
	return c.Reply(fmt.Sprintf("👋 Welcome back %s! Balance: %s", user.DisplayName(), money(user.Earnings)))
}

// HandleMe handles /me.
func (h *AccountHandler) HandleMe(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "me", err)
	}
	d, err := h.stats.Dashboard(ctx, user.UUID)
	if err != nil {
		return fail(c, "me", err)
	}
	return c.Reply(FormatDashboard(d))
}

// HandleDaily handles /daily.
func (h *AccountHandler) HandleDaily(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "daily", err)
	}
	updated, recorded, err := h.accrual.DailyLogin(ctx, user.UUID)
	if updated == nil {
		return fail(c, "daily", err)
	}
	if !recorded {
		return c.Reply(fmt.Sprintf("⏰ Already checked in today. Streak: %d days", updated.LoginStreak))
	}
	return c.Reply(fmt.Sprintf("✅ Checked in! Streak: %d days, points: %d", updated.LoginStreak, updated.TotalPoints))
}

// HandleProgress handles /progress.
func (h *AccountHandler) HandleProgress(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "progress", err)
	}
	return c.Reply(FormatEligibility(h.eligibility.Evaluate(user)))
}

// HandleShare handles /share <platform>.
func (h *AccountHandler) HandleShare(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	platform := strings.ToLower(strings.TrimSpace(c.Message().Payload))
	if platform == "" {
		return c.Reply("Usage: /share <platform>, e.g. /share x")
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "share", err)
	}
	updated, err := h.accrual.SocialShare(ctx, user.UUID, platform)
	if updated == nil {
		return fail(c, "share", err)
	}
	return c.Reply(fmt.Sprintf("📣 Share recorded! Total shares: %d", updated.SocialShares))
}

// HandleLink handles /link.
func (h *AccountHandler) HandleLink(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "link", err)
	}
	return c.Reply(fmt.Sprintf("🔗 Your referral link:\n%s\n\nCode: %s", h.accounts.ReferralLink(user.ReferralCode), user.ReferralCode))
}

// FormatDashboard renders the /me summary.
func FormatDashboard(d *service.Dashboard) string {
	u := d.User
	var b strings.Builder
	b.WriteString("📊 Account\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "👤 %s\n", u.DisplayName())
	fmt.Fprintf(&b, "💰 Earnings: %s (available %s)\n", money(u.Earnings), money(d.AvailableBalance))
	fmt.Fprintf(&b, "⭐ Points: %d\n", u.TotalPoints)
	fmt.Fprintf(&b, "👥 Referrals: %d  🖱 Clicks: %d\n", u.TotalReferrals, u.TotalClicks)
	fmt.Fprintf(&b, "🎁 Donated: %s  ✨ Influence: %s\n", money(u.TotalDonated), u.InfluenceScore.String())
	fmt.Fprintf(&b, "🔥 Streak: %d days\n", u.LoginStreak)
	if d.Entry != nil {
		fmt.Fprintf(&b, "🎟 Prize pool tickets: %d\n", d.Entry.Entries)
	}
	status := "not yet"
	if d.Eligibility.Eligible {
		status = "yes"
	}
	fmt.Fprintf(&b, "🏦 Withdrawals unlocked: %s\n", status)
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}

// FormatEligibility renders the requirement checklist.
func FormatEligibility(e rewards.Eligibility) string {
	var b strings.Builder
	if e.Eligible {
		b.WriteString("🎉 You can request withdrawals!\n")
	} else {
		b.WriteString("📋 Withdrawal requirements\n")
	}
	for _, r := range e.Requirements {
		mark := "⬜"
		if r.Completed {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s (%s/%s)\n", mark, r.Label, r.Current.String(), r.Required.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

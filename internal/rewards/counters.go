package rewards

import (
	"time"

	"github.com/shopspring/decimal"
)

// Counters is the accrual state of one user account.
type Counters struct {
	Earnings        decimal.Decimal
	TotalPoints     int64
	TotalClicks     int64
	TotalReferrals  int64
	CompletedOffers int64
	SocialShares    int64
	OfferClicks     int64
	TotalDonated    decimal.Decimal
	InfluenceScore  decimal.Decimal
	LoginStreak     int64
	LastLoginDate   time.Time
}

// InfluenceScore computes the score from current totals. It is always
// recomputed from the totals, never incremented.
func InfluenceScore(donated decimal.Decimal, referrals, clicks int64, w InfluenceWeights) decimal.Decimal {
	return donated.Mul(decimal.NewFromInt(w.Donated)).
		Add(decimal.NewFromInt(referrals * w.Referrals)).
		Add(decimal.NewFromInt(clicks * w.Clicks))
}

// Apply returns the counters after adding d, with the influence score
// recomputed from the updated totals.
func (c Counters) Apply(d Delta, w InfluenceWeights) Counters {
	out := c
	out.Earnings = c.Earnings.Add(d.Earnings)
	out.TotalPoints = c.TotalPoints + d.Points
	out.TotalClicks = c.TotalClicks + d.Clicks
	out.TotalReferrals = c.TotalReferrals + d.Referrals
	out.CompletedOffers = c.CompletedOffers + d.CompletedOffers
	out.SocialShares = c.SocialShares + d.SocialShares
	out.OfferClicks = c.OfferClicks + d.OfferClicks
	out.TotalDonated = c.TotalDonated.Add(d.Donated)
	out.InfluenceScore = InfluenceScore(out.TotalDonated, out.TotalReferrals, out.TotalClicks, w)
	return out
}

// CalendarDay returns t's date in loc as a UTC midnight, the form stored in
// DATE columns.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextStreak returns the login streak after logging in on today. The streak
// continues only when the previous login was exactly the day before.
func NextStreak(current int64, lastLogin, today time.Time) int64 {
	if lastLogin.IsZero() {
		return 1
	}
	last := CalendarDay(lastLogin, time.UTC)
	if last.AddDate(0, 0, 1).Equal(CalendarDay(today, time.UTC)) {
		return current + 1
	}
	return 1
}

// ApplyDailyLogin returns the counters after a first login on today.
// Callers must ensure today has not been recorded yet.
func (c Counters) ApplyDailyLogin(today time.Time, p Policy) Counters {
	out := c
	out.LoginStreak = NextStreak(c.LoginStreak, c.LastLoginDate, today)
	out.LastLoginDate = CalendarDay(today, time.UTC)
	out.TotalPoints = c.TotalPoints + p.DailyLoginPoints
	return out
}

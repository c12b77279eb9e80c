// Property-based tests for the accrual, eligibility and ticket rules.
package rewards

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// drawCents draws a non-negative currency amount with two decimal places.
func drawCents(t *rapid.T, label string, max int64) decimal.Decimal {
	return decimal.New(rapid.Int64Range(0, max).Draw(t, label), -2)
}

func drawCounters(t *rapid.T) Counters {
	c := Counters{
		Earnings:        drawCents(t, "earnings", 1_000_000),
		TotalPoints:     rapid.Int64Range(0, 100_000).Draw(t, "points"),
		TotalClicks:     rapid.Int64Range(0, 100_000).Draw(t, "clicks"),
		TotalReferrals:  rapid.Int64Range(0, 1_000).Draw(t, "referrals"),
		CompletedOffers: rapid.Int64Range(0, 1_000).Draw(t, "offers"),
		SocialShares:    rapid.Int64Range(0, 1_000).Draw(t, "shares"),
		OfferClicks:     rapid.Int64Range(0, 1_000).Draw(t, "offerClicks"),
		TotalDonated:    drawCents(t, "donated", 1_000_000),
	}
	c.InfluenceScore = InfluenceScore(c.TotalDonated, c.TotalReferrals, c.TotalClicks, DefaultPolicy().Influence)
	return c
}

func drawEvent(t *rapid.T) Event {
	switch rapid.IntRange(0, 5).Draw(t, "kind") {
	case 0:
		return Click{ReferralCode: "ABCD1234"}
	case 1:
		return Referral{ReferredUUID: "referred", Code: "ABCD1234"}
	case 2:
		return Donation{Amount: drawCents(t, "amount", 100_000), Currency: "USD", Network: "card"}
	case 3:
		return OfferCompletion{OfferID: "offer", Reward: drawCents(t, "reward", 10_000)}
	case 4:
		return SocialShare{Platform: "twitter"}
	default:
		return OfferClick{OfferID: "offer"}
	}
}

// TestAccrualMonotonicProperty checks that no additive event ever decreases a counter.
func TestAccrualMonotonicProperty(t *testing.T) {
	policy := DefaultPolicy()
	rapid.Check(t, func(t *rapid.T) {
		before := drawCounters(t)
		ev := drawEvent(t)

		after := before.Apply(ev.Delta(policy), policy.Influence)

		if after.Earnings.LessThan(before.Earnings) {
			t.Fatalf("%s decreased earnings: %s -> %s", ev.Kind(), before.Earnings, after.Earnings)
		}
		if after.TotalDonated.LessThan(before.TotalDonated) {
			t.Fatalf("%s decreased total_donated", ev.Kind())
		}
		if after.InfluenceScore.LessThan(before.InfluenceScore) {
			t.Fatalf("%s decreased influence: %s -> %s", ev.Kind(), before.InfluenceScore, after.InfluenceScore)
		}
		if after.TotalPoints < before.TotalPoints || after.TotalClicks < before.TotalClicks ||
			after.TotalReferrals < before.TotalReferrals || after.CompletedOffers < before.CompletedOffers ||
			after.SocialShares < before.SocialShares || after.OfferClicks < before.OfferClicks {
			t.Fatalf("%s decreased a counter: before=%+v after=%+v", ev.Kind(), before, after)
		}
	})
}

// TestInfluenceScoreDeterminismProperty checks that the score always equals
// the formula over current totals, even after a sequence of events.
func TestInfluenceScoreDeterminismProperty(t *testing.T) {
	policy := DefaultPolicy()
	rapid.Check(t, func(t *rapid.T) {
		c := drawCounters(t)
		n := rapid.IntRange(1, 30).Draw(t, "events")
		for i := 0; i < n; i++ {
			c = c.Apply(drawEvent(t).Delta(policy), policy.Influence)
		}

		want := c.TotalDonated.Mul(decimal.NewFromInt(10)).
			Add(decimal.NewFromInt(c.TotalReferrals * 5)).
			Add(decimal.NewFromInt(c.TotalClicks))
		if !c.InfluenceScore.Equal(want) {
			t.Fatalf("influence drifted: got %s want %s", c.InfluenceScore, want)
		}
	})
}

// TestEligibilityConjunctionProperty checks that eligibility holds exactly
// when all seven requirements hold.
func TestEligibilityConjunctionProperty(t *testing.T) {
	th := DefaultPolicy().Thresholds
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rapid.Check(t, func(t *rapid.T) {
		c := Counters{
			TotalDonated:    drawCents(t, "donated", 300),
			TotalReferrals:  rapid.Int64Range(0, 6).Draw(t, "referrals"),
			TotalClicks:     rapid.Int64Range(0, 100).Draw(t, "clicks"),
			CompletedOffers: rapid.Int64Range(0, 10).Draw(t, "offers"),
			SocialShares:    rapid.Int64Range(0, 20).Draw(t, "shares"),
			TotalPoints:     rapid.Int64Range(0, 200).Draw(t, "points"),
		}
		ageHours := rapid.IntRange(0, 14*24).Draw(t, "ageHours")
		createdAt := now.Add(-time.Duration(ageHours) * time.Hour)

		got := Evaluate(c, createdAt, now, th)

		want := c.TotalDonated.GreaterThanOrEqual(th.Donated) &&
			c.TotalReferrals >= th.Referrals &&
			c.TotalClicks >= th.Clicks &&
			c.CompletedOffers >= th.CompletedOffers &&
			c.SocialShares >= th.SocialShares &&
			c.TotalPoints >= th.Points &&
			now.Sub(createdAt) >= th.AccountAge
		if got.Eligible != want {
			t.Fatalf("eligible=%v want %v for %+v age=%dh", got.Eligible, want, c, ageHours)
		}
		if len(got.Requirements) != 7 {
			t.Fatalf("expected 7 requirements, got %d", len(got.Requirements))
		}
	})
}

// TestEligibilityFlipProperty checks that dropping any single requirement
// below its threshold makes an eligible user ineligible.
func TestEligibilityFlipProperty(t *testing.T) {
	th := DefaultPolicy().Thresholds
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rapid.Check(t, func(t *rapid.T) {
		c := Counters{
			TotalDonated:    th.Donated.Add(drawCents(t, "extraDonated", 500)),
			TotalReferrals:  th.Referrals + rapid.Int64Range(0, 5).Draw(t, "extraReferrals"),
			TotalClicks:     th.Clicks + rapid.Int64Range(0, 50).Draw(t, "extraClicks"),
			CompletedOffers: th.CompletedOffers + rapid.Int64Range(0, 5).Draw(t, "extraOffers"),
			SocialShares:    th.SocialShares + rapid.Int64Range(0, 5).Draw(t, "extraShares"),
			TotalPoints:     th.Points + rapid.Int64Range(0, 50).Draw(t, "extraPoints"),
		}
		createdAt := now.Add(-th.AccountAge - time.Duration(rapid.IntRange(0, 100).Draw(t, "extraHours"))*time.Hour)
		if !Evaluate(c, createdAt, now, th).Eligible {
			t.Fatalf("expected eligible baseline: %+v", c)
		}

		flipped := c
		switch rapid.IntRange(0, 6).Draw(t, "flip") {
		case 0:
			flipped.TotalDonated = th.Donated.Sub(decimal.New(1, -2))
		case 1:
			flipped.TotalReferrals = th.Referrals - 1
		case 2:
			flipped.TotalClicks = th.Clicks - 1
		case 3:
			flipped.CompletedOffers = th.CompletedOffers - 1
		case 4:
			flipped.SocialShares = th.SocialShares - 1
		case 5:
			flipped.TotalPoints = th.Points - 1
		default:
			createdAt = now.Add(-th.AccountAge + time.Minute)
		}
		if Evaluate(flipped, createdAt, now, th).Eligible {
			t.Fatalf("expected ineligible after flip: %+v", flipped)
		}
	})
}

// TestTicketFloorProperty checks entries(s) == max(1, floor(s/10)).
func TestTicketFloorProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		score := drawCents(t, "score", 10_000_000)
		got := Tickets(score, 10)

		want := score.Div(decimal.NewFromInt(10)).Floor().IntPart()
		if want < 1 {
			want = 1
		}
		if got != want {
			t.Fatalf("Tickets(%s)=%d want %d", score, got, want)
		}
		if got < 1 {
			t.Fatalf("ticket floor violated: %d", got)
		}
	})
}

// TestNextStreakProperty checks that the streak continues only on consecutive days.
func TestNextStreakProperty(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rapid.Check(t, func(t *rapid.T) {
		current := rapid.Int64Range(1, 365).Draw(t, "current")
		gap := rapid.IntRange(1, 10).Draw(t, "gapDays")
		last := base.AddDate(0, 0, rapid.IntRange(0, 300).Draw(t, "offset"))
		today := last.AddDate(0, 0, gap).Add(time.Duration(rapid.IntRange(0, 23).Draw(t, "hour")) * time.Hour)

		got := NextStreak(current, last, today)
		if gap == 1 && got != current+1 {
			t.Fatalf("consecutive day should extend streak: got %d want %d", got, current+1)
		}
		if gap > 1 && got != 1 {
			t.Fatalf("gap of %d days should reset streak, got %d", gap, got)
		}
	})
}

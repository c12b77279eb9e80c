package rewards

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RequirementKey identifies one eligibility requirement.
type RequirementKey string

// Eligibility requirement keys.
const (
	ReqDonated         RequirementKey = "total_donated"
	ReqReferrals       RequirementKey = "total_referrals"
	ReqClicks          RequirementKey = "total_clicks"
	ReqCompletedOffers RequirementKey = "completed_offers"
	ReqSocialShares    RequirementKey = "social_shares"
	ReqPoints          RequirementKey = "total_points"
	ReqAccountAge      RequirementKey = "account_age_days"
)

// Requirement is the progress of one eligibility requirement.
type Requirement struct {
	Key       RequirementKey  `json:"key"`
	Label     string          `json:"label"`
	Current   decimal.Decimal `json:"current"`
	Required  decimal.Decimal `json:"required"`
	Completed bool            `json:"completed"`
}

// Eligibility is the outcome of Evaluate.
type Eligibility struct {
	Eligible     bool          `json:"eligible"`
	Requirements []Requirement `json:"requirements"`
}

// Missing returns the requirements that are not yet completed.
func (e Eligibility) Missing() []Requirement {
	var out []Requirement
	for _, r := range e.Requirements {
		if !r.Completed {
			out = append(out, r)
		}
	}
	return out
}

const day = 24 * time.Hour

// Evaluate checks every requirement against the counters. The user is
// eligible only when all of them are completed.
func Evaluate(c Counters, createdAt, now time.Time, t Thresholds) Eligibility {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	requiredDays := int64((t.AccountAge + day - 1) / day)

	reqs := []Requirement{
		atLeast(ReqDonated, fmt.Sprintf("Donate at least $%s", t.Donated.StringFixed(2)), c.TotalDonated, t.Donated),
		count(ReqReferrals, fmt.Sprintf("Refer %d friends", t.Referrals), c.TotalReferrals, t.Referrals),
		count(ReqClicks, fmt.Sprintf("Get %d link clicks", t.Clicks), c.TotalClicks, t.Clicks),
		count(ReqCompletedOffers, fmt.Sprintf("Complete %d offers", t.CompletedOffers), c.CompletedOffers, t.CompletedOffers),
		count(ReqSocialShares, fmt.Sprintf("Share %d times", t.SocialShares), c.SocialShares, t.SocialShares),
		count(ReqPoints, fmt.Sprintf("Earn %d points", t.Points), c.TotalPoints, t.Points),
		{
			Key:       ReqAccountAge,
			Label:     fmt.Sprintf("Account at least %d days old", requiredDays),
			Current:   decimal.NewFromInt(int64(age / day)),
			Required:  decimal.NewFromInt(requiredDays),
			Completed: age >= t.AccountAge,
		},
	}

	eligible := true
	for _, r := range reqs {
		if !r.Completed {
			eligible = false
		}
	}
	return Eligibility{Eligible: eligible, Requirements: reqs}
}

func atLeast(key RequirementKey, label string, current, required decimal.Decimal) Requirement {
	return Requirement{
		Key:       key,
		Label:     label,
		Current:   current,
		Required:  required,
		Completed: current.GreaterThanOrEqual(required),
	}
}

func count(key RequirementKey, label string, current, required int64) Requirement {
	return atLeast(key, label, decimal.NewFromInt(current), decimal.NewFromInt(required))
}

package rewards

import "github.com/shopspring/decimal"

// Tickets converts an influence score into sweepstakes entries:
// max(1, floor(score/divisor)).
func Tickets(score decimal.Decimal, divisor int64) int64 {
	if divisor <= 0 {
		return 1
	}
	n := score.Div(decimal.NewFromInt(divisor)).Floor().IntPart()
	if n < 1 {
		return 1
	}
	return n
}

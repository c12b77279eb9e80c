package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func drawMoney(t *rapid.T, label string) decimal.Decimal {
	return decimal.New(rapid.Int64Range(-10000, 100000).Draw(t, label), -2)
}

// drawAmount sometimes yields sub-cent amounts.
func drawAmount(t *rapid.T, label string) decimal.Decimal {
	return decimal.New(rapid.Int64Range(-100000, 1000000).Draw(t, label), -3)
}

// TestWithdrawalGateOrderProperty checks that the first failing gate decides
// the error, in the order eligibility, minimum, balance, details.
func TestWithdrawalGateOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		eligible := rapid.Bool().Draw(t, "eligible")
		amount := drawAmount(t, "amount")
		available := drawMoney(t, "available")
		minimum := decimal.New(rapid.Int64Range(1, 10000).Draw(t, "minimum"), -2)
		details := rapid.SampledFrom([]string{"", "   ", "santa@example.com"}).Draw(t, "details")

		err := checkWithdrawal(eligible, amount, available, minimum, details)

		var want error
		switch {
		case !eligible:
			want = ErrNotEligible
		case !amount.IsPositive() || amount.LessThan(minimum):
			want = ErrBelowMinimum
		case !amount.Equal(amount.Truncate(2)):
			want = ErrInvalidAmount
		case amount.GreaterThan(available):
			want = ErrInsufficientBalance
		case details == "" || details == "   ":
			want = ErrMissingPaymentDetails
		}

		if !errors.Is(err, want) || (want == nil && err != nil) {
			t.Fatalf("eligible=%v amount=%s available=%s minimum=%s details=%q: got %v, want %v",
				eligible, amount, available, minimum, details, err, want)
		}
	})
}

// TestNotEligibleAlwaysWinsProperty checks that an ineligible account is
// rejected with ErrNotEligible whatever the other inputs are.
func TestNotEligibleAlwaysWinsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		err := checkWithdrawal(false, drawMoney(t, "amount"), drawMoney(t, "available"), decimal.NewFromInt(25),
			rapid.String().Draw(t, "details"))
		if !errors.Is(err, ErrNotEligible) {
			t.Fatalf("expected ErrNotEligible, got %v", err)
		}
	})
}

func TestWithdrawalGateExamples(t *testing.T) {
	min := decimal.NewFromInt(25)
	cases := []struct {
		name      string
		eligible  bool
		amount    string
		available string
		details   string
		want      error
	}{
		{"not eligible", false, "1000", "1000", "x", ErrNotEligible},
		{"just below minimum", true, "24.99", "1000", "x", ErrBelowMinimum},
		{"zero", true, "0", "1000", "x", ErrBelowMinimum},
		{"negative", true, "-5", "1000", "x", ErrBelowMinimum},
		{"sub-cent", true, "25.005", "1000", "x", ErrInvalidAmount},
		{"sub-cent over available", true, "30.001", "20", "x", ErrInvalidAmount},
		{"trailing zeros", true, "25.000", "1000", "x", nil},
		{"over available", true, "30", "20", "x", ErrInsufficientBalance},
		{"no details", true, "25", "25", "", ErrMissingPaymentDetails},
		{"ok at minimum", true, "25", "25", "paypal@example.com", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkWithdrawal(tc.eligible, decimal.RequireFromString(tc.amount), decimal.RequireFromString(tc.available), min, tc.details)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

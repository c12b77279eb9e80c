package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"santapot/internal/model"
	"santapot/internal/service"
)

const withdrawUsage = "Usage: /withdraw <amount> <paypal|cashapp|venmo|crypto> <details>"

var errWithdrawUsage = errors.New(withdrawUsage)

// WithdrawalHandler handles /withdraw.
type WithdrawalHandler struct {
	accounts    *service.AccountService
	withdrawals *service.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(svc *service.Services) *WithdrawalHandler {
	return &WithdrawalHandler{accounts: svc.Accounts, withdrawals: svc.Withdrawals}
}

// WithdrawArgs is a parsed /withdraw command.
type WithdrawArgs struct {
	Amount  decimal.Decimal
	Method  model.PaymentMethod
	Details string
}

// ParseWithdrawArgs parses "<amount> <method> <details...>". The method is
// not validated here so the service reports gate errors in order.
func ParseWithdrawArgs(payload string) (WithdrawArgs, error) {
	fields := strings.Fields(payload)
	if len(fields) < 2 {
		return WithdrawArgs{}, errWithdrawUsage
	}
	amount, err := decimal.NewFromString(strings.TrimPrefix(fields[0], "$"))
	if err != nil {
		return WithdrawArgs{}, errWithdrawUsage
	}
	return WithdrawArgs{
		Amount:  amount,
		Method:  model.PaymentMethod(strings.ToLower(fields[1])),
		Details: strings.Join(fields[2:], " "),
	}, nil
}

// HandleWithdraw handles /withdraw <amount> <method> <details>.
// With no arguments it shows the available balance and past requests.
func (h *WithdrawalHandler) HandleWithdraw(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "withdraw", err)
	}

	payload := strings.TrimSpace(c.Message().Payload)
	if payload == "" {
		available, err := h.withdrawals.AvailableBalance(ctx, user.UUID)
		if err != nil {
			return fail(c, "withdraw", err)
		}
		list, err := h.withdrawals.ListWithdrawals(ctx, user.UUID)
		if err != nil {
			return fail(c, "withdraw", err)
		}
		return c.Reply(FormatWithdrawals(available, h.withdrawals.Minimum(), list))
	}

	args, err := ParseWithdrawArgs(payload)
	if err != nil {
		return c.Reply(err.Error())
	}
	w, err := h.withdrawals.RequestWithdrawal(ctx, user.UUID, args.Amount, args.Method, args.Details)
	if err != nil {
		return fail(c, "withdraw", err)
	}
	return c.Reply(fmt.Sprintf("✅ Withdrawal of %s via %s requested. Status: %s", money(w.Amount), w.PaymentMethod, w.Status))
}

// FormatWithdrawals renders the balance and request history.
func FormatWithdrawals(available, minimum decimal.Decimal, list []*model.WithdrawalRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏦 Available: %s (minimum %s)\n", money(available), money(minimum))
	for _, w := range list {
		fmt.Fprintf(&b, "• %s %s via %s: %s\n", w.CreatedAt.Format("2006-01-02"), money(w.Amount), w.PaymentMethod, w.Status)
	}
	b.WriteString(withdrawUsage)
	return b.String()
}

// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"santapot/internal/model"
	"santapot/internal/pkg/lock"
	"santapot/internal/repository"
	"santapot/internal/service"
)

const handlerTimeout = 15 * time.Second

// ExternalID is the identity key Telegram accounts are registered under.
func ExternalID(telegramID int64) string {
	return "tg:" + strconv.FormatInt(telegramID, 10)
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

func handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// ensureAccount returns the sender's account, registering it on first use.
func ensureAccount(ctx context.Context, accounts *service.AccountService, sender *tele.User, referralCode string) (*model.UserAccount, bool, error) {
	return accounts.Register(ctx, service.RegisterInput{
		ExternalID:   ExternalID(sender.ID),
		Username:     displayName(sender),
		ReferralCode: referralCode,
	})
}

// userMessage turns a service error into a chat reply.
func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotEligible):
		return "❌ You are not eligible to withdraw yet. Use /progress to see what is missing."
	case errors.Is(err, service.ErrBelowMinimum):
		return "❌ Amount is below the minimum withdrawal."
	case errors.Is(err, service.ErrInvalidAmount):
		return "❌ Invalid amount. Use a positive value with at most 2 decimal places."
	case errors.Is(err, service.ErrInsufficientBalance):
		return "❌ Insufficient available balance."
	case errors.Is(err, service.ErrMissingPaymentDetails):
		return "❌ Payment details are required."
	case errors.Is(err, service.ErrInvalidPaymentMethod):
		return "❌ Unsupported payment method. Use paypal, cashapp, venmo or crypto."
	case errors.Is(err, service.ErrUnknownOffer):
		return "❌ Unknown offer. Use /offers to list them."
	case errors.Is(err, service.ErrOfferAlreadyCompleted):
		return "⏰ You already completed this offer."
	case errors.Is(err, repository.ErrNoActivePool):
		return "📭 There is no active prize pool right now."
	case errors.Is(err, lock.ErrLockTimeout):
		return "⏳ Busy, please try again in a moment."
	default:
		return "❌ Something went wrong, please try again later."
	}
}

// fail logs err and replies with its user-facing message.
func fail(c tele.Context, op string, err error) error {
	if sender := c.Sender(); sender != nil {
		log.Warn().Err(err).Str("operation", op).Int64("user_id", sender.ID).Msg("Command failed")
	}
	return c.Reply(userMessage(err))
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

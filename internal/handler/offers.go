package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"santapot/internal/service"
)

// OfferHandler handles the partner offer commands.
type OfferHandler struct {
	accounts *service.AccountService
	offers   *service.OfferService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(svc *service.Services) *OfferHandler {
	return &OfferHandler{accounts: svc.Accounts, offers: svc.Offers}
}

// HandleOffers handles /offers.
func (h *OfferHandler) HandleOffers(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "offers", err)
	}
	list, err := h.offers.List(ctx, user.UUID)
	if err != nil {
		return fail(c, "offers", err)
	}
	return c.Reply(FormatOffers(list))
}

// HandleOffer handles /offer <id>: records the click and returns the link.
func (h *OfferHandler) HandleOffer(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	id := strings.TrimSpace(c.Message().Payload)
	if id == "" {
		return c.Reply("Usage: /offer <id>")
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "offer_click", err)
	}
	offer, updated, err := h.offers.Click(ctx, user.UUID, id)
	if updated == nil {
		return fail(c, "offer_click", err)
	}
	return c.Reply(fmt.Sprintf("🔗 %s\n%s\n\nWhen you are done, send /done %s", offer.Title, offer.Link, offer.ID))
}

// HandleDone handles /done <id>.
func (h *OfferHandler) HandleDone(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	id := strings.TrimSpace(c.Message().Payload)
	if id == "" {
		return c.Reply("Usage: /done <id>")
	}
	ctx, cancel := handlerContext()
	defer cancel()

	user, _, err := ensureAccount(ctx, h.accounts, sender, "")
	if user == nil {
		return fail(c, "offer_complete", err)
	}
	updated, err := h.offers.Complete(ctx, user.UUID, id)
	if updated == nil {
		return fail(c, "offer_complete", err)
	}
	return c.Reply(fmt.Sprintf("✅ Offer completed! Earnings: %s, completed offers: %d", money(updated.Earnings), updated.CompletedOffers))
}

// FormatOffers renders the offer catalog.
func FormatOffers(list []service.OfferView) string {
	if len(list) == 0 {
		return "📭 No offers available right now."
	}
	var b strings.Builder
	b.WriteString("🎁 Offers\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	for _, o := range list {
		mark := "•"
		if o.Completed {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s (%s) %s\n   /offer %s\n", mark, o.Title, o.EstimatedTime, money(o.Reward), o.ID)
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}

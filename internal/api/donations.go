package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"santapot/internal/service"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 64 << 10
)

type cryptoDonationRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"required"`
	Network  string          `json:"network" binding:"required"`
	TxHash   string          `json:"tx_hash" binding:"required"`
}

func (s *Server) handleCryptoDonation(c *gin.Context) {
	var req cryptoDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, ok := s.account(c)
	if !ok {
		return
	}
	updated, err := s.svc.Donations.DonateCrypto(c.Request.Context(), user.UUID, service.CryptoDonation{
		Amount:   req.Amount,
		Currency: req.Currency,
		Network:  req.Network,
		TxHash:   req.TxHash,
	})
	if updated == nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// handlePaymentWebhook acknowledges gateway events. Duplicates and ignored
// event types return 200 so the gateway stops retrying.
func (s *Server) handlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, err)
		return
	}
	handled, err := s.svc.Donations.HandlePaymentWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "handled": handled})
}

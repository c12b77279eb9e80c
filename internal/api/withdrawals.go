package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"santapot/internal/model"
)

type withdrawalRequest struct {
	Amount         decimal.Decimal     `json:"amount"`
	PaymentMethod  model.PaymentMethod `json:"payment_method"`
	PaymentDetails string              `json:"payment_details"`
}

func (s *Server) handleRequestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, ok := s.account(c)
	if !ok {
		return
	}
	w, err := s.svc.Withdrawals.RequestWithdrawal(c.Request.Context(), user.UUID, req.Amount, req.PaymentMethod, req.PaymentDetails)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (s *Server) handleListWithdrawals(c *gin.Context) {
	user, ok := s.account(c)
	if !ok {
		return
	}
	list, err := s.svc.Withdrawals.ListWithdrawals(c.Request.Context(), user.UUID)
	if err != nil {
		writeError(c, err)
		return
	}
	available, err := s.svc.Withdrawals.AvailableBalance(c.Request.Context(), user.UUID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"withdrawals":       list,
		"available_balance": available,
		"minimum":           s.svc.Withdrawals.Minimum(),
	})
}

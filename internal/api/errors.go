package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"santapot/internal/pkg/lock"
	"santapot/internal/repository"
	"santapot/internal/service"
)

// apiError is the JSON body of every failed request.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{service.ErrNotEligible, http.StatusForbidden, "not_eligible"},
	{service.ErrBelowMinimum, http.StatusBadRequest, "below_minimum"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{service.ErrInsufficientBalance, http.StatusBadRequest, "insufficient_balance"},
	{service.ErrMissingPaymentDetails, http.StatusBadRequest, "missing_payment_details"},
	{service.ErrInvalidPaymentMethod, http.StatusBadRequest, "invalid_payment_method"},
	{service.ErrOfferAlreadyCompleted, http.StatusConflict, "offer_already_completed"},
	{service.ErrUnknownOffer, http.StatusNotFound, "unknown_offer"},
	{service.ErrSelfReferral, http.StatusBadRequest, "self_referral"},
	{service.ErrDonationNotConfirmed, http.StatusUnprocessableEntity, "donation_not_confirmed"},
	{service.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{repository.ErrNoActivePool, http.StatusNotFound, "no_active_pool"},
	{repository.ErrRecordNotFound, http.StatusNotFound, "record_not_found"},
	{repository.ErrDuplicateRecord, http.StatusConflict, "duplicate_record"},
	{lock.ErrLockTimeout, http.StatusServiceUnavailable, "busy"},
}

// statusFor maps a service error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeError aborts the request with the mapped status. Store and unknown
// failures are logged and hidden behind a generic message.
func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
		msg = "Something went wrong, please try again"
	}
	c.AbortWithStatusJSON(status, apiError{Code: code, Message: msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, apiError{Code: "invalid_request", Message: err.Error()})
}

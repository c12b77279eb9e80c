package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"santapot/internal/model"
	"santapot/internal/repository"
	"santapot/internal/rewards"
)

// Payment event types handled by the webhook.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	fiatNetwork           = "stripe"
)

// ChainVerifier confirms on-chain donation transactions.
type ChainVerifier interface {
	// Verify reports whether txHash was confirmed on chain and paid at
	// least amount of currency to the donation address. false with a nil
	// error means the network has no endpoint to check against.
	Verify(ctx context.Context, network, txHash, currency string, amount decimal.Decimal) (bool, error)
}

// CryptoDonation is a wallet-submitted donation.
type CryptoDonation struct {
	Amount   decimal.Decimal
	Currency string
	Network  string
	TxHash   string
}

// DonationService accepts fiat webhook and crypto donations.
type DonationService struct {
	accrual   *AccrualService
	events    EventStore
	verifier  ChainVerifier
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewDonationService creates a new DonationService.
func NewDonationService(accrual *AccrualService, events EventStore, verifier ChainVerifier, webhookSecret string, tolerance time.Duration, now func() time.Time) *DonationService {
	if now == nil {
		now = time.Now
	}
	return &DonationService{
		accrual:   accrual,
		events:    events,
		verifier:  verifier,
		secret:    []byte(webhookSecret),
		tolerance: tolerance,
		now:       now,
	}
}

// DonateCrypto verifies and credits a wallet donation. A transaction hash
// is credited at most once; hashes are compared in lowercase.
func (s *DonationService) DonateCrypto(ctx context.Context, uuid string, d CryptoDonation) (*model.UserAccount, error) {
	if !d.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	network := strings.ToLower(strings.TrimSpace(d.Network))
	txHash := strings.ToLower(strings.TrimSpace(d.TxHash))
	if txHash == "" {
		return nil, fmt.Errorf("%w: transaction hash is required", ErrDonationNotConfirmed)
	}

	exists, err := s.events.DonationExists(ctx, "", network, txHash)
	if err != nil {
		return nil, storeErr("check donation", err)
	}
	if exists {
		return nil, repository.ErrDuplicateRecord
	}

	if s.verifier != nil {
		checked, err := s.verifier.Verify(ctx, network, txHash, d.Currency, d.Amount)
		if err != nil {
			log.Warn().Err(err).
				Str("operation", "donate_crypto").
				Str("uuid", uuid).
				Str("network", network).
				Str("tx_hash", txHash).
				Msg("Donation transaction not confirmed")
			return nil, fmt.Errorf("%w: %w", ErrDonationNotConfirmed, err)
		}
		if !checked {
			log.Warn().Str("network", network).Str("tx_hash", txHash).Msg("Accepting donation without on-chain check")
		}
	}

	return s.accrual.Donate(ctx, uuid, rewards.Donation{
		Amount:   d.Amount,
		Currency: strings.ToUpper(d.Currency),
		Network:  network,
		TxHash:   txHash,
	})
}

type paymentEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Currency string            `json:"currency"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandlePaymentWebhook verifies and applies a payment gateway event. It
// returns true when the event produced a new donation. Unhandled event
// types and already-recorded payment intents are acknowledged without
// side effects.
func (s *DonationService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	if err := s.verifySignature(payload, signature); err != nil {
		return false, err
	}

	var ev paymentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false, fmt.Errorf("failed to decode payment event: %w", err)
	}
	if ev.Type != EventPaymentSucceeded {
		log.Debug().Str("event_id", ev.ID).Str("type", ev.Type).Msg("Ignoring payment event")
		return false, nil
	}

	intent := ev.Data.Object
	uuid := intent.Metadata["user_uuid"]
	if uuid == "" {
		return false, fmt.Errorf("payment intent %s has no user_uuid metadata", intent.ID)
	}
	if intent.Amount <= 0 {
		return false, ErrInvalidAmount
	}

	exists, err := s.events.DonationExists(ctx, intent.ID, "", "")
	if err != nil {
		return false, storeErr("check donation", err)
	}
	if exists {
		log.Info().Str("payment_intent_id", intent.ID).Msg("Payment intent already recorded")
		return false, nil
	}

	_, err = s.accrual.Donate(ctx, uuid, rewards.Donation{
		Amount:          decimal.New(intent.Amount, -2),
		Currency:        strings.ToUpper(intent.Currency),
		Network:         fiatNetwork,
		PaymentIntentID: intent.ID,
	})
	if errors.Is(err, repository.ErrDuplicateRecord) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// verifySignature checks a "t=<unix>,v1=<hex>" header: HMAC-SHA256 of
// "<t>.<payload>" under the webhook secret, within the replay tolerance.
func (s *DonationService) verifySignature(payload []byte, header string) error {
	if len(s.secret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}

	var (
		timestamp string
		sigs      []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if timestamp == "" || len(sigs) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if s.tolerance > 0 {
		age := s.now().Sub(time.Unix(ts, 0))
		if age > s.tolerance || age < -s.tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	expected := SignPayload(s.secret, timestamp, payload)
	for _, sig := range sigs {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload computes the webhook MAC for timestamp and payload.
func SignPayload(secret []byte, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

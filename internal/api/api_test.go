package api

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"santapot/internal/model"
	"santapot/internal/pkg/lock"
	"santapot/internal/pubsub"
	"santapot/internal/repository"
	"santapot/internal/repository/memory"
	"santapot/internal/rewards"
	"santapot/internal/service"
)

const (
	jwtSecret     = "test-jwt-secret-0123456789abcdef"
	webhookSecret = "whsec_test"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	svc    *service.Services
	hub    *pubsub.LocalHub
	router *gin.Engine
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memory.New()
	hub := pubsub.NewLocalHub()
	t.Cleanup(func() { _ = hub.Close() })

	env := &testEnv{hub: hub, now: time.Now().Add(8 * 24 * time.Hour)}
	env.svc = service.New(
		service.Ledger{Users: st, Events: st, Withdrawals: st, Pots: st},
		service.Settings{
			Policy:       rewards.DefaultPolicy(),
			TicketPolicy: service.TicketsFreeze,
			Pool:         service.PoolDefaults{Name: "Test Pool", DrawAfter: time.Hour},
			PublicURL:    "https://santapot.test",
			Offers: []model.Offer{
				{ID: "survey", Title: "Survey", Reward: decimal.NewFromInt(5), Link: "https://example.com/s", Active: true},
				{ID: "app", Title: "App", Reward: decimal.NewFromInt(10), Link: "https://example.com/a", Active: true},
			},
			WebhookSecret:    webhookSecret,
			WebhookTolerance: 5 * time.Minute,
			Now:              func() time.Time { return env.now },
		},
		hub,
		nil,
	)
	router, err := NewRouter(env.svc, hub, Options{
		PublicURL:        "https://santapot.test/",
		JWTSecret:        jwtSecret,
		DonationNetworks: map[string]string{"base": "0x000000000000000000000000000000000000dEaD"},
	})
	require.NoError(t, err)
	env.router = router
	return env
}

func token(t *testing.T, sub string) string {
	t.Helper()
	claims := Claims{
		Email:    sub + "@example.com",
		Username: sub,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, sub, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, sub))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) signup(t *testing.T, sub, code string) *model.UserAccount {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/signup", sub, fmt.Sprintf(`{"referral_code":%q}`, code))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[signupResponse](t, rec).User
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down, err := NewRouter(env.svc, env.hub, Options{JWTSecret: jwtSecret, HealthCheck: func(context.Context) error {
		return errors.New("connection refused")
	}})
	require.NoError(t, err)
	out := httptest.NewRecorder()
	down.ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, out.Code)
}

func TestDonationNetworks(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/donations/networks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"networks":{"base":"0x000000000000000000000000000000000000dEaD"}}`, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "santa"}).SignedString([]byte("wrong"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	out := httptest.NewRecorder()
	env.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)

	// Signed but never registered.
	rec = env.do(t, http.MethodGet, "/me", "ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "record_not_found", decode[apiError](t, rec).Code)
}

func TestRouterRefusesWeakSecret(t *testing.T) {
	env := newTestEnv(t)
	for _, secret := range []string{"", "short"} {
		_, err := NewRouter(env.svc, env.hub, Options{JWTSecret: secret})
		assert.ErrorIs(t, err, ErrWeakSecret)
	}
}

func TestEmptyKeyTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "victim", "")

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "victim"}).SignedString([]byte(""))
	require.NoError(t, err)

	_, err = parseToken([]byte(""), forged)
	assert.ErrorIs(t, err, ErrWeakSecret)

	req := httptest.NewRequest(http.MethodPost, "/me/withdrawals", strings.NewReader(`{"amount":"25","payment_method":"paypal","payment_details":"v@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+forged)
	out := httptest.NewRecorder()
	env.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)
}

func TestSignupAndReferral(t *testing.T) {
	env := newTestEnv(t)
	santa := env.signup(t, "santa", "")
	assert.Equal(t, "santa@example.com", santa.Email)
	assert.Equal(t, "santa", santa.DisplayName())

	// Signing up again returns the same account.
	rec := env.do(t, http.MethodPost, "/signup", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[signupResponse](t, rec)
	assert.False(t, again.Created)
	assert.Equal(t, santa.UUID, again.User.UUID)
	assert.Equal(t, "https://santapot.test/r/"+santa.ReferralCode, again.ReferralLink)

	env.signup(t, "elf", santa.ReferralCode)

	rec = env.do(t, http.MethodGet, "/me/referrals", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	refs := decode[struct {
		Referrals []model.ReferralRecord `json:"referrals"`
	}](t, rec)
	assert.Len(t, refs.Referrals, 1)

	rec = env.do(t, http.MethodGet, "/me", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[service.Dashboard](t, rec)
	assert.Equal(t, int64(1), d.User.TotalReferrals)
	assert.Equal(t, int64(50), d.User.TotalPoints)
	assert.True(t, decimal.NewFromInt(150).Equal(d.AvailableBalance))
}

func TestReferralClickRedirects(t *testing.T) {
	env := newTestEnv(t)
	santa := env.signup(t, "santa", "")

	rec := env.do(t, http.MethodGet, "/r/"+strings.ToLower(santa.ReferralCode), "", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://santapot.test/?ref="+santa.ReferralCode, rec.Header().Get("Location"))

	user, err := env.svc.Accounts.Get(context.Background(), santa.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.TotalClicks)

	rec = env.do(t, http.MethodGet, "/r/NOPE0000", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// flagFailingUsers commits accruals but cannot store the eligibility flag.
// Accrue reports a stale flag so every refresh attempts a write.
type flagFailingUsers struct {
	service.UserStore
}

func (f flagFailingUsers) Accrue(ctx context.Context, id string, d rewards.Delta, w rewards.InfluenceWeights, rec model.EventRecord) (*model.UserAccount, error) {
	user, err := f.UserStore.Accrue(ctx, id, d, w, rec)
	if user != nil {
		user.WithdrawalEligible = true
	}
	return user, err
}

func (flagFailingUsers) SetWithdrawalEligible(context.Context, string, bool) error {
	return errors.New("connection reset")
}

func TestReferralClickCommittedDespiteRefreshFailure(t *testing.T) {
	st := memory.New()
	hub := pubsub.NewLocalHub()
	t.Cleanup(func() { _ = hub.Close() })
	svc := service.New(
		service.Ledger{Users: flagFailingUsers{UserStore: st}, Events: st, Withdrawals: st, Pots: st},
		service.Settings{Policy: rewards.DefaultPolicy(), PublicURL: "https://santapot.test"},
		hub, nil,
	)
	router, err := NewRouter(svc, hub, Options{PublicURL: "https://santapot.test", JWTSecret: jwtSecret})
	require.NoError(t, err)

	owner, _, err := svc.Accounts.Register(context.Background(), service.RegisterInput{ExternalID: "santa"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/r/"+owner.ReferralCode, nil))
	assert.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

	user, err := st.GetByUUID(context.Background(), owner.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.TotalClicks)
}

func TestDailyLoginAndShare(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "santa", "")

	rec := env.do(t, http.MethodPost, "/me/daily-login", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[dailyLoginResponse](t, rec).Recorded)

	rec = env.do(t, http.MethodPost, "/me/daily-login", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[dailyLoginResponse](t, rec)
	assert.False(t, second.Recorded)
	assert.Equal(t, int64(1), second.User.TotalPoints)

	rec = env.do(t, http.MethodPost, "/me/shares", "santa", `{"platform":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[model.UserAccount](t, rec).SocialShares)

	rec = env.do(t, http.MethodPost, "/me/shares", "santa", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOffers(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "santa", "")

	rec := env.do(t, http.MethodGet, "/offers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Offers []service.OfferView `json:"offers"`
	}](t, rec).Offers, 2)

	rec = env.do(t, http.MethodPost, "/offers/survey/click", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://example.com/s")

	rec = env.do(t, http.MethodPost, "/offers/survey/complete", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[model.UserAccount](t, rec).CompletedOffers)

	rec = env.do(t, http.MethodPost, "/offers/survey/complete", "santa", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "offer_already_completed", decode[apiError](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/offers/missing/complete", "santa", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/me/offers", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, o := range decode[struct {
		Offers []service.OfferView `json:"offers"`
	}](t, rec).Offers {
		assert.Equal(t, o.ID == "survey", o.Completed)
	}
}

func TestWithdrawalRequiresEligibility(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "santa", "")

	rec := env.do(t, http.MethodPost, "/me/withdrawals", "santa", `{"amount":"30","payment_method":"paypal","payment_details":"santa@example.com"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_eligible", decode[apiError](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/me/withdrawals", "santa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available_balance":"100"`)
	assert.Contains(t, rec.Body.String(), `"minimum":"25"`)
}

func TestPaymentWebhook(t *testing.T) {
	env := newTestEnv(t)
	santa := env.signup(t, "santa", "")

	payload := fmt.Sprintf(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","amount":500,"currency":"usd","metadata":{"user_uuid":%q}}}}`, santa.UUID)
	ts := strconv.FormatInt(env.now.Unix(), 10)
	sig := hex.EncodeToString(service.SignPayload([]byte(webhookSecret), ts, []byte(payload)))

	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(payload))
		req.Header.Set(signatureHeader, signature)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := post("t=" + ts + ",v1=" + sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true,"handled":true}`, rec.Body.String())

	rec = post("t=" + ts + ",v1=" + sig)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"handled":false}`, rec.Body.String())

	rec = post("t=" + ts + ",v1=00")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_signature", decode[apiError](t, rec).Code)

	pot := env.do(t, http.MethodGet, "/pot", "", "")
	require.Equal(t, http.StatusOK, pot.Code)
	assert.Equal(t, int64(1), decode[model.GlobalPot](t, pot).TotalDonations)
}

func TestCryptoDonation(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "santa", "")
	body := `{"amount":"0.25","currency":"eth","network":"base","tx_hash":"0xabc"}`

	rec := env.do(t, http.MethodPost, "/donations/crypto", "santa", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decimal.RequireFromString("0.25").Equal(decode[model.UserAccount](t, rec).TotalDonated))

	rec = env.do(t, http.MethodPost, "/donations/crypto", "santa", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_record", decode[apiError](t, rec).Code)
}

func TestPrizePool(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/pool", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_active_pool", decode[apiError](t, rec).Code)

	_, err := env.svc.PrizePool.EnsureActivePool(context.Background())
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/pool?limit=5", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Test Pool"`)
}

func TestLiveStatsAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "santa", "")
	env.do(t, http.MethodPost, "/me/shares", "santa", `{"platform":"x"}`)

	rec := env.do(t, http.MethodGet, "/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[model.LiveStats](t, rec).TotalUsers)

	rec = env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "santapot_accrual_events_total")
}

func TestPotStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Keep publishing until the subscription is in place.
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = env.hub.Publish(ctx, pubsub.TopicPot, model.GlobalPot{TotalUsers: 7})
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/pot/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	require.NotEmpty(t, lines)
	assert.Contains(t, lines, "event:"+pubsub.TopicPot)
	assert.Contains(t, lines[len(lines)-1], `"total_users":7`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrNotEligible, http.StatusForbidden, "not_eligible"},
		{fmt.Errorf("request: %w", service.ErrBelowMinimum), http.StatusBadRequest, "below_minimum"},
		{service.ErrInsufficientBalance, http.StatusBadRequest, "insufficient_balance"},
		{service.ErrMissingPaymentDetails, http.StatusBadRequest, "missing_payment_details"},
		{repository.ErrRecordNotFound, http.StatusNotFound, "record_not_found"},
		{lock.ErrLockTimeout, http.StatusServiceUnavailable, "busy"},
		{fmt.Errorf("op: %w: %w", service.ErrWriteFailed, fmt.Errorf("conn reset")), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

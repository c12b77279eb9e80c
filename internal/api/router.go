// Package api serves the HTTP front end over the rewards services.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"santapot/internal/pubsub"
	"santapot/internal/service"
)

// Options configures the router.
type Options struct {
	PublicURL      string
	JWTSecret      string
	AllowedOrigins []string
	// DonationNetworks maps each accepted network to its receiver address.
	DonationNetworks map[string]string
	// HealthCheck reports store health; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	svc       *service.Services
	hub       pubsub.Hub
	publicURL string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *service.Services, hub pubsub.Hub, opts Options) (*gin.Engine, error) {
	auth, err := AuthMiddleware([]byte(opts.JWTSecret))
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:       svc,
		hub:       hub,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
	}

	router := gin.New()
	router.Use(Recovery(), AccessLog())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(opts.AllowedOrigins) == 0 || (len(opts.AllowedOrigins) == 1 && opts.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", func(c *gin.Context) {
		if opts.HealthCheck != nil {
			if err := opts.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/r/:code", s.handleReferralClick)
	router.GET("/offers", s.handleListOffers)
	router.GET("/pot", s.handleGlobalPot)
	router.GET("/pool", s.handlePrizePool)
	router.GET("/stats", s.handleLiveStats)
	router.GET("/pot/stream", s.handlePotStream)
	router.POST("/webhooks/payments", s.handlePaymentWebhook)
	router.GET("/donations/networks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"networks": opts.DonationNetworks})
	})

	authed := router.Group("/")
	authed.Use(auth)
	authed.POST("/signup", s.handleSignup)
	authed.POST("/offers/:id/click", s.handleOfferClick)
	authed.POST("/offers/:id/complete", s.handleOfferComplete)
	authed.POST("/donations/crypto", s.handleCryptoDonation)

	me := authed.Group("/me")
	me.GET("", s.handleMe)
	me.PATCH("", s.handleUpdateMe)
	me.GET("/eligibility", s.handleEligibility)
	me.POST("/daily-login", s.handleDailyLogin)
	me.POST("/shares", s.handleShare)
	me.GET("/referrals", s.handleReferrals)
	me.GET("/offers", s.handleMyOffers)
	me.POST("/withdrawals", s.handleRequestWithdrawal)
	me.GET("/withdrawals", s.handleListWithdrawals)
	me.GET("/stream", s.handleMeStream)

	return router, nil
}

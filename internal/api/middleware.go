package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const identityKey = "identity"

// minSecretLength mirrors config.MinJWTSecretLength for callers that build
// the router directly.
const minSecretLength = 32

// ErrWeakSecret is returned when the token signing key is missing or short.
var ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")

// Claims are the identity provider token claims. Subject is the external
// identity key accounts are registered under.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	ExternalID string
	Email      string
	Username   string
}

// AuthMiddleware verifies HS256 bearer tokens and stores the caller identity.
// An empty or short secret is refused: HS256 accepts any token signed with
// the same empty key.
func AuthMiddleware(secret []byte) (gin.HandlerFunc, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "Authorization token required"})
			return
		}

		identity, err := parseToken(secret, tokenString)
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("Rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "Invalid or expired token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}, nil
}

func parseToken(secret []byte, tokenString string) (Identity, error) {
	if len(secret) < minSecretLength {
		return Identity{}, ErrWeakSecret
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return Identity{ExternalID: claims.Subject, Email: claims.Email, Username: claims.Username}, nil
}

// extractToken reads the bearer token, falling back to the access_token
// query parameter for EventSource clients that cannot set headers.
func extractToken(c *gin.Context) string {
	if scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("access_token")
}

func identityFrom(c *gin.Context) Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(Identity)
	return id
}

// AccessLog logs every request through zerolog.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// Recovery turns handler panics into 500 responses.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("Recovered from panic in handler")
		c.AbortWithStatusJSON(http.StatusInternalServerError, apiError{Code: "internal", Message: "Something went wrong, please try again"})
	})
}

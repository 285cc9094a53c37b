package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vibelog/backend/internal/logger"
)

const userIDKey = "user_id"

// Authenticator verifies HS256 bearer tokens whose subject is the user id.
type Authenticator struct {
	secret   []byte
	audience string
}

func NewAuthenticator(secret, audience string) *Authenticator {
	return &Authenticator{secret: []byte(secret), audience: audience}
}

// Verify parses token and returns its subject.
func (a *Authenticator) Verify(token string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("authentication is not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// Issue signs a token for userID. Used by tests and local tooling.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (a *Authenticator) attach(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
	c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), userID))
}

// OptionalAuth attaches the user when a valid token is present. Requests
// with a missing or invalid token continue anonymously.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if userID, err := a.Verify(token); err == nil {
				a.attach(c, userID)
			} else {
				logger.CtxDebug(c.Request.Context(), "Ignoring invalid bearer token: %v", err)
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid token with 401.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Sign in to continue.")
			return
		}
		userID, err := a.Verify(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "Your session is invalid or has expired.")
			return
		}
		a.attach(c, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

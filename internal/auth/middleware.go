// Package auth guards write endpoints with HMAC-signed bearer tokens.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const SubjectKey contextKey = "subject"

const issuer = "proposaland"

var ErrMissingSecret = errors.New("auth secret is empty")

// Authenticator issues and verifies operator tokens with one shared secret.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// New returns an Authenticator for secret. An empty secret gets a random
// one, so tokens issued by a previous process stop working.
func New(secret string) (*Authenticator, bool, error) {
	secret = strings.TrimSpace(secret)
	if secret != "" {
		return &Authenticator{secret: []byte(secret), now: time.Now}, false, nil
	}
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("generate fallback secret: %w", err)
	}
	return &Authenticator{secret: []byte(base64.RawURLEncoding.EncodeToString(buf)), now: time.Now}, true, nil
}

// IssueToken signs a token for subject that expires after ttl.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject is empty")
	}
	if len(a.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns its subject.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("invalid token subject")
	}
	return sub, nil
}

// Middleware validates the bearer token and stores its subject on the context.
func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}

		sub, err := a.Verify(parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set(string(SubjectKey), sub)
		return next(c)
	}
}

// SubjectFromContext returns the subject stored by Middleware.
func SubjectFromContext(c echo.Context) (string, error) {
	sub, ok := c.Get(string(SubjectKey)).(string)
	if !ok || sub == "" {
		return "", errors.New("subject not found in context")
	}
	return sub, nil
}

// Package auth verifies bearer tokens issued by the platform's identity
// service. This service only consumes tokens; issuing, refresh, and password
// flows live elsewhere.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/storelane/backoffice/internal/common"
)

// TenantClaim is the private claim carrying the tenant a token was minted for.
const TenantClaim = "tenant"

// Claims is the identity extracted from a verified token.
type Claims struct {
	UserID string
	// TenantID is empty for platform-level tokens that are not pinned to one
	// tenant.
	TenantID string
}

// Verifier parses and validates access tokens.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
	Now       func() time.Time
}

// ParseAccessToken validates the token and returns its claims.
func (v Verifier) ParseAccessToken(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	expected := v.Algorithm
	if expected == "" {
		expected = jwa.HS256
	}
	if algorithm != expected {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized,
			fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.Secret))
	if err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := v.validate(parsed); err != nil {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}

	claims := Claims{UserID: parsed.Subject()}
	if raw, ok := parsed.Get(TenantClaim); ok {
		if s, ok := raw.(string); ok {
			claims.TenantID = strings.TrimSpace(s)
		}
	}
	if claims.UserID == "" {
		return Claims{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized,
			errors.New("auth: token has no subject"))
	}
	return claims, nil
}

func (v Verifier) validate(tok jwt.Token) error {
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	return jwt.Validate(tok, options...)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	header := signatures[0].ProtectedHeaders()
	if header == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	return header.Algorithm(), nil
}

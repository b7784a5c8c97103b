// Package auth verifies the optional bearer token on the job endpoint.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Atronar/yt-dlp-web-api/models"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
)

// VerifyConfig holds verification configuration
type VerifyConfig struct {
	SecretKey      []byte        // HS256
	ExpectedIssuer string        // Optional: validate issuer
	ClockSkew      time.Duration // Optional: allow clock skew (default 0)
}

// Verify checks signature, timestamps and issuer of tokenString.
func Verify(tokenString string, config VerifyConfig) (*models.APIClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if len(config.SecretKey) == 0 {
		return nil, errors.New("no verification key provided")
	}

	tok, err := jwt.ParseSigned(tokenString, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &models.APIClaims{}
	if err := tok.Claims(config.SecretKey, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := time.Now().Unix()
	clockSkew := int64(config.ClockSkew.Seconds())

	if claims.ExpiresAt > 0 && claims.ExpiresAt < (now-clockSkew) {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt > 0 && claims.IssuedAt > (now+clockSkew) {
		return nil, ErrTokenNotYetValid
	}
	if config.ExpectedIssuer != "" && claims.Issuer != config.ExpectedIssuer {
		return nil, fmt.Errorf("%w: expected '%s', got '%s'",
			ErrInvalidIssuer, config.ExpectedIssuer, claims.Issuer)
	}

	return claims, nil
}

// Sign creates an HS256 token for claims. Used by operators to mint
// client tokens and by tests.
func Sign(claims *models.APIClaims, secret []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims cannot be nil")
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}

// FromRequest extracts and verifies the Authorization bearer token.
func FromRequest(r *http.Request, config VerifyConfig) (*models.APIClaims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, ErrMissingToken
	}
	return Verify(strings.TrimSpace(token), config)
}

// Package jwt verifies the access tokens that carry the caller's account.
// Tokens are issued by the external session layer; Generator exists for
// tooling and tests that share the signing secret.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrMissingAccount is returned when the token carries no account.
	ErrMissingAccount = errors.New("token has no account")
)

// Claims identifies the calling account.
type Claims struct {
	AccountID   int64  `json:"account_id"`
	AccountType string `json:"account_type"`

	jwt.RegisteredClaims
}

// TokenConfig configures token generation.
type TokenConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Generator signs tokens with a shared HMAC secret.
type Generator struct {
	config TokenConfig
}

// NewGenerator creates a new token generator.
func NewGenerator(config TokenConfig) *Generator {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	return &Generator{config: config}
}

// Generate creates a signed token for an account.
func (g *Generator) Generate(accountID int64, accountType string) (string, time.Time, error) {
	if accountID <= 0 || accountType == "" {
		return "", time.Time{}, ErrMissingAccount
	}

	now := time.Now()
	expiresAt := now.Add(g.config.TTL)
	claims := Claims{
		AccountID:   accountID,
		AccountType: accountType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.config.Issuer,
			Subject:   fmt.Sprintf("%d", accountID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(g.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verifier checks token signatures and the optional issuer.
type Verifier struct {
	secret string
	issuer string
}

// NewVerifier creates a verifier. An empty issuer accepts any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer}
}

// Verify validates the token and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.AccountID <= 0 || claims.AccountType == "" {
		return nil, ErrMissingAccount
	}
	return claims, nil
}

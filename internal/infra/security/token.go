package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"convo/internal/domain/user"
)

var (
	ErrSecretRequired = errors.New("security: jwt secret is required")
	ErrInvalidToken   = errors.New("security: invalid token")
)

const DefaultTokenTTL = 24 * time.Hour

// CallerClaims identifies the user a request acts for. Subject carries the user id.
type CallerClaims struct {
	jwt.RegisteredClaims
	Handle string `json:"handle,omitempty"`
}

// Tokens issues and verifies HS256 caller tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret, issuer string, ttl time.Duration) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

func (t *Tokens) Issue(id user.ID, handle string) (string, error) {
	now := t.now()
	claims := CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Handle: handle,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and issuer and returns the caller id.
func (t *Tokens) Verify(raw string) (user.ID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now)}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &CallerClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return user.ID(claims.Subject), nil
}

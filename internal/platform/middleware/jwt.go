package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"secureid/internal/domain"
)

// Claims carried by holder bearer tokens.
type Claims struct {
	Holder string `json:"holder"`
	jwt.RegisteredClaims
}

// JWTValidator validates bearer tokens on holder-scoped endpoints.
type JWTValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HMACValidator signs and validates holder tokens with HS256.
type HMACValidator struct {
	key []byte
}

// NewHMACValidator builds a validator around the shared signing key.
func NewHMACValidator(key string) *HMACValidator {
	return &HMACValidator{key: []byte(key)}
}

// Mint issues a token for the holder, valid for ttl.
func (v *HMACValidator) Mint(holder domain.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Holder: holder.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   holder.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Holder == "" {
		return nil, errors.New("token has no holder claim")
	}
	return claims, nil
}

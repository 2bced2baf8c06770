package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")
)

// tokenClaims is the signed payload
type tokenClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HMACValidator validates and issues HS256 tokens signed with a shared secret
type HMACValidator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewHMACValidator creates a validator for tokens issued by issuer
func NewHMACValidator(secret, issuer string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// ValidateToken validates a JWT token and returns parsed claims
func (v *HMACValidator) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if tc.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrInvalidIssuer, v.issuer, tc.Issuer)
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := &Claims{
		Sub:   tc.Subject,
		Name:  tc.Name,
		Roles: tc.Roles,
		Iss:   tc.Issuer,
	}
	if tc.ExpiresAt != nil {
		claims.Exp = tc.ExpiresAt.Unix()
	}
	if tc.IssuedAt != nil {
		claims.Iat = tc.IssuedAt.Unix()
	}
	return claims, nil
}

// Issue signs a token for subject carrying roles, valid for ttl
func (v *HMACValidator) Issue(subject string, roles []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive")
	}
	now := v.now()
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

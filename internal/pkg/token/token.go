package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultValidity is how long a session credential stays valid.
const DefaultValidity = 7 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity is the claim set downstream handlers receive. It is everything a
// business handler may know about the caller; registry credentials never
// cross this boundary.
type Identity struct {
	UserID     uint   `json:"uid"`
	TenantID   uint   `json:"tid"`
	TenantSlug string `json:"slug"`
	Role       string `json:"role"`
}

type identityClaims struct {
	Identity
	jwt.RegisteredClaims
}

// Signer issues and verifies bearer credentials with a shared HMAC secret.
type Signer struct {
	secret   []byte
	validity time.Duration
}

func NewSigner(secret []byte, validity time.Duration) *Signer {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Signer{secret: secret, validity: validity}
}

// Issue signs a credential for the given identity.
func (s *Signer) Issue(identity Identity) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bizcore",
			Subject:   identity.TenantSlug,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// Parse verifies a credential and returns the embedded identity.
func (s *Signer) Parse(tokenStr string) (*Identity, error) {
	var claims identityClaims
	tok, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	return &claims.Identity, nil
}

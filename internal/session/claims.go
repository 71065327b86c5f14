package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload shared by buyer and seller tokens. Buyer tokens
// carry user_id, seller tokens carry seller_id.
type Claims struct {
	UserID   int64  `json:"user_id,omitempty"`
	SellerID int64  `json:"seller_id,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims builds claims for an account of the given kind
func NewClaims(kind Kind, id int64, username string, ttl time.Duration, now time.Time) *Claims {
	c := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{kind.Audience()},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	switch kind {
	case Seller:
		c.SellerID = id
	default:
		c.UserID = id
	}
	return c
}

// InNamespace reports whether the claims were issued for kind
func (c *Claims) InNamespace(kind Kind) bool {
	for _, aud := range c.Audience {
		if aud == kind.Audience() {
			if kind == Seller {
				return c.SellerID != 0
			}
			return c.UserID != 0
		}
	}
	return false
}

// Subject is the account id for the given namespace as a string
func (c *Claims) Subject(kind Kind) string {
	if kind == Seller {
		return strconv.FormatInt(c.SellerID, 10)
	}
	return strconv.FormatInt(c.UserID, 10)
}

// Sign issues an HS256 token
func Sign(c *Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// Verify parses and validates a token for the given namespace
func Verify(tokenString string, secret []byte, kind Kind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(kind.Audience()),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || !claims.InNamespace(kind) {
		return nil, ErrWrongNamespace
	}
	return claims, nil
}

// DecodeClaims reads claims without verifying the signature. It is only used
// for local identity display; the server stays authoritative.
func DecodeClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	return claims, nil
}

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GuestClaims is what a resume token carries: just enough for a
// reconnecting client to present the same guest identity again.
type GuestClaims struct {
	UserID  string `json:"user_id"`
	IsGuest bool   `json:"is_guest"`
	jwt.RegisteredClaims
}

// TokenSigner issues and validates guest resume tokens (HMAC-SHA256).
type TokenSigner struct {
	secret   []byte
	duration time.Duration
}

func NewTokenSigner(secret string, duration time.Duration) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), duration: duration}
}

// Generate creates a signed resume token for a guest user.
func (s *TokenSigner) Generate(userID string, isGuest bool) (string, error) {
	claims := &GuestClaims{
		UserID:  userID,
		IsGuest: isGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-sessions",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses the token and checks signature and expiration.
func (s *TokenSigner) Validate(tokenString string) (*GuestClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &GuestClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*GuestClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

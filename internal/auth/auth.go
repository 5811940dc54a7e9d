package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Actor is the authenticated caller of a core operation. Operations that
// stamp confirmed_by/created_by fields take the actor ID explicitly
// instead of reading ambient session state.
type Actor struct {
	ID   uuid.UUID
	Role string
}

const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RoleStaff   = "staff"
	RolePatient = "patient"
)

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// NewToken signs a short-lived HS256 token for the given actor.
func NewToken(secret []byte, actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: actor.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates an HS256 token and extracts the actor.
func ParseToken(secret []byte, raw string) (Actor, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, ErrInvalidToken
	}

	return Actor{ID: id, Role: claims.Role}, nil
}

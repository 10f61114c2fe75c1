package jwt

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Role is the access level encoded in a token.
type Role string

const (
	RoleDriver     Role = "DRIVER"
	RoleDispatcher Role = "DISPATCHER"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleDriver || r == RoleDispatcher
}

// ParseRole normalizes and validates a role string.
func ParseRole(in string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(in)))
	return r, r.Valid()
}

// Claims is the canonical JWT claims payload. Subject is the driver id.
type Claims struct {
	Role Role `json:"role"`
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewDriverClaims constructs claims for a driver token.
func NewDriverClaims(driverID string, role Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   driverID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}

package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role decides how far a caller's market scope reaches.
type Role string

const (
	// RoleAdmin sees every non-deleted market.
	RoleAdmin Role = "admin"
	// RoleMarketUser sees the markets they are assigned to.
	RoleMarketUser Role = "market_user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMarketUser:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a raw role string.
func ParseRole(value string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	return r, r.IsValid()
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID int64
	Role   Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by report callers.
type AccessTokenClaims struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
	jwt.RegisteredClaims
}

package jwt

import "github.com/golang-jwt/jwt/v5"

// Claims are carried by admin API tokens. Subject is the actor recorded on ledger entries.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// HasRole reports whether the token grants role.
func (c *Claims) HasRole(role Role) bool {
	return c != nil && Role(c.Role) == role
}

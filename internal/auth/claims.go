package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

// TokenTypeAccess is the only token type the operator API accepts.
const TokenTypeAccess TokenType = "access"

// Claims are the only supported JWT claims shape for the operator API.
// Multi-tenant invariant: TenantID must be present; only super_admin may read
// other tenants' calls, and that check lives in internal/rbac.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

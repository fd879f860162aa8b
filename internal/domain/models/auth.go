package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims is the JWT claims structure issued by the wallet identity
// provider. The subject is the wallet-bound user identifier; Handle is the
// human-readable name shown in the editor.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Handle    string `json:"handle"`
	PublicKey string `json:"public_key"`
	Role      string `json:"role"` // "authenticated" or "anon"
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *IdentityClaims) GetUserID() string {
	return c.Subject
}

package auth

import "quillvault/internal/domain/models"

// TokenVerifier validates bearer tokens issued by the wallet identity
// provider. The abstraction keeps the middleware agnostic to where key
// material comes from.
type TokenVerifier interface {
	// VerifyToken validates a JWT string and returns the parsed claims.
	// Returns an error if the token is invalid, expired, or has an
	// invalid signature.
	VerifyToken(tokenString string) (*models.IdentityClaims, error)

	// Close releases any resources held by the verifier (e.g., HTTP
	// connections for JWKS).
	Close() error
}

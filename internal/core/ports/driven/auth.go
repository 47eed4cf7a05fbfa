package driven

import "github.com/custodia-labs/semdex/internal/core/domain"

// AuthAdapter handles token cryptography. Tokens are issued by the
// identity service; this side only needs to verify them.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}

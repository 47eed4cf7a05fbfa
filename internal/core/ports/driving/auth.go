package driving

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// AuthService verifies bearer tokens issued by the identity service
type AuthService interface {
	// ValidateToken validates a token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/lowkey/internal/core/domain"
)

// AuthService handles admin authentication for the harvest API
type AuthService interface {
	// IssueToken exchanges the admin key for a signed API token
	IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error)

	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}

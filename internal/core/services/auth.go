package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/lowkey/internal/core/domain"
	"github.com/custodia-labs/lowkey/internal/core/ports/driven"
	"github.com/custodia-labs/lowkey/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// adminSubject is the token subject issued for the admin key
const adminSubject = "admin"

// authService implements the AuthService interface.
// There are no user accounts: one admin key, stored as a bcrypt hash,
// is exchanged for short-lived JWTs.
type authService struct {
	authAdapter  driven.AuthAdapter
	adminKeyHash string
	tokenTTL     time.Duration
}

// NewAuthService creates a new AuthService.
// An empty adminKeyHash disables token issuing.
func NewAuthService(authAdapter driven.AuthAdapter, adminKeyHash string, tokenTTL time.Duration) driving.AuthService {
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{
		authAdapter:  authAdapter,
		adminKeyHash: adminKeyHash,
		tokenTTL:     tokenTTL,
	}
}

// IssueToken exchanges the admin key for a signed API token
func (s *authService) IssueToken(ctx context.Context, req domain.TokenRequest) (*domain.TokenResponse, error) {
	if req.Key == "" {
		return nil, domain.ErrInvalidInput
	}
	if s.adminKeyHash == "" {
		return nil, domain.ErrUnauthorized
	}
	if !s.authAdapter.VerifyKey(req.Key, s.adminKeyHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &domain.TokenClaims{
		Subject:   adminSubject,
		Role:      domain.RoleAdmin,
		TokenID:   uuid.NewString(),
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	token, err := s.authAdapter.GenerateToken(claims)
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	// Parse and validate JWT
	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	// Check expiration
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	return &domain.AuthContext{
		Subject: claims.Subject,
		Role:    claims.Role,
		TokenID: claims.TokenID,
	}, nil
}

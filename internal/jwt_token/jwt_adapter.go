package jwttoken

import (
	"docgate/pkg/platform/middleware/auth"
)

// AuthAdapter adapts JWTService to the auth middleware's validator interface.
type AuthAdapter struct {
	service *JWTService
}

// NewAuthAdapter creates an adapter for the auth middleware.
func NewAuthAdapter(service *JWTService) *AuthAdapter {
	return &AuthAdapter{service: service}
}

// ValidateToken validates a token and converts claims to the middleware format.
func (a *AuthAdapter) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{
		ActorID: claims.ActorID,
		Roles:   claims.Roles,
	}, nil
}

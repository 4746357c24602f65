package jwttoken

import (
	"sahara/internal/platform/middleware"
)

// JWTServiceAdapter satisfies middleware.JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.ActorClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.ActorClaims{ActorID: claims.ActorID, Role: claims.Role}, nil
}

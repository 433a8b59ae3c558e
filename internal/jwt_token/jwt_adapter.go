package jwttoken

import (
	"purchasegate/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *SessionClaims) *auth.SessionClaims {
	return &auth.SessionClaims{
		ParentID: claims.Subject,
		FamilyID: claims.FamilyID,
	}
}

// JWTServiceAdapter lets the auth middleware validate sessions without
// depending on the JWT claim layout.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateSession(tokenString string) (*auth.SessionClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}

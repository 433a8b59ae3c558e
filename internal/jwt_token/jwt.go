// Package jwttoken issues and validates parent session tokens. Sessions are
// HS256 JWTs whose subject is the parent and whose fid claim is the family.
// The signing key is derived from the service secret, so the same secret can
// back approval deep links without either token verifying as the other.
package jwttoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"purchasegate/internal/approval/link"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

const sessionKeyInfo = "purchasegate parent session v1"

// SessionClaims are the claims of a parent session token.
type SessionClaims struct {
	FamilyID string `json:"fid"`
	Env      string `json:"env,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles session token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
	env        string
	now        func() time.Time
}

func NewJWTService(secret, issuer, audience string, tokenTTL time.Duration) (*JWTService, error) {
	key, err := link.DeriveKey(secret, sessionKeyInfo)
	if err != nil {
		return nil, err
	}
	return &JWTService{
		signingKey: key,
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}, nil
}

// SetEnv annotates issued tokens with an environment string (e.g. "dev").
func (s *JWTService) SetEnv(env string) {
	s.env = env
}

// IssueSession signs a session for the parent. The returned jti identifies
// the token in logs.
func (s *JWTService) IssueSession(ctx context.Context, parentID domain.ParentID, familyID domain.FamilyID) (token string, jti string, err error) {
	if parentID.IsNil() || familyID.IsNil() {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "parent and family required")
	}
	now := requestcontext.Now(ctx)
	jti = uuid.NewString()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		FamilyID: familyID.String(),
		Env:      s.env,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   parentID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})
	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" || claims.FamilyID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing parent or family")
	}
	return claims, nil
}

// Package link signs approval deep links. A link carries the approval token
// and the addressed parent in an HS256 JWT that expires with the request, so
// a parent can approve from an email or push notification without a session.
package link

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
)

const (
	keyInfo  = "purchasegate approval link v1"
	audience = "approval-link"
	// QueryParam is the deep link query parameter holding the signed token.
	QueryParam = "t"
)

// Claims are the deep link claims. Subject is the parent.
type Claims struct {
	Token string `json:"tok"`
	jwt.RegisteredClaims
}

// Signer issues and verifies deep links.
type Signer struct {
	key     []byte
	baseURL string
	issuer  string
}

// DeriveKey expands the service secret into a key used only for deep links,
// so a leaked link key cannot mint session tokens and vice versa.
func DeriveKey(secret string, info string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("link signing secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive link key: %w", err)
	}
	return key, nil
}

func NewSigner(secret, baseURL, issuer string) (*Signer, error) {
	key, err := DeriveKey(secret, keyInfo)
	if err != nil {
		return nil, err
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse link base url: %w", err)
	}
	return &Signer{key: key, baseURL: baseURL, issuer: issuer}, nil
}

// Sign returns the signed JWT for the token.
func (s *Signer) Sign(token domain.ApprovalToken, parentID domain.ParentID, issuedAt, expiresAt time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Token: token.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   parentID.String(),
			Issuer:    s.issuer,
			Audience:  []string{audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign approval link: %w", err)
	}
	return signed, nil
}

// URL builds the deep link for the token.
func (s *Signer) URL(token domain.ApprovalToken, parentID domain.ParentID, issuedAt, expiresAt time.Time) (string, error) {
	signed, err := s.Sign(token, parentID, issuedAt, expiresAt)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse link base url: %w", err)
	}
	q := u.Query()
	q.Set(QueryParam, signed)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks signature, audience and expiry at now and returns the token
// and the parent it was addressed to. An expired link maps to token_expired.
func (s *Signer) Verify(signed string, now time.Time) (domain.ApprovalToken, domain.ParentID, error) {
	if signed == "" {
		return "", domain.ParentID{}, dErrors.New(dErrors.CodeInvalidInput, "empty approval link")
	}
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	},
		jwt.WithAudience(audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ParentID{}, dErrors.ErrTokenExpired
		}
		return "", domain.ParentID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid approval link")
	}

	parentID, err := domain.ParseParentID(claims.Subject)
	if err != nil {
		return "", domain.ParentID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid approval link subject")
	}
	token, err := domain.ParseApprovalToken(claims.Token)
	if err != nil {
		return "", domain.ParentID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid approval link token")
	}
	return token, parentID, nil
}

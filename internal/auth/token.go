package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the access-token payload. Kind is the explicit discriminator:
// "user" tokens carry Role, "municipality" and "company" tokens carry their
// display fields instead. Verification switches on Kind, never on which
// fields happen to be present.
type Claims struct {
	Kind           Kind   `json:"type"`
	Username       string `json:"username"`
	Role           Role   `json:"role,omitempty"`
	Name           string `json:"name,omitempty"`
	Department     string `json:"department,omitempty"`
	BusinessSector string `json:"businessSector,omitempty"`
	jwt.RegisteredClaims
}

func (s *Service) signToken(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   claims.RegisteredClaims.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *Service) signUserToken(u *User) (string, time.Time, error) {
	claims := Claims{
		Kind:     KindUser,
		Username: u.Username,
		Role:     u.Role,
	}
	claims.Subject = u.ID
	return s.signToken(claims, s.userTTL)
}

func (s *Service) signMunicipalityToken(m *Municipality) (string, time.Time, error) {
	claims := Claims{
		Kind:       KindMunicipality,
		Username:   m.Username,
		Name:       m.Name,
		Department: m.Department,
	}
	claims.Subject = m.ID
	return s.signToken(claims, s.entityTTL)
}

func (s *Service) signCompanyToken(c *Company) (string, time.Time, error) {
	claims := Claims{
		Kind:           KindCompany,
		Username:       c.Username,
		Name:           c.Name,
		BusinessSector: c.BusinessSector,
	}
	claims.Subject = c.ID
	return s.signToken(claims, s.entityTTL)
}

// parseToken verifies signature and expiry and returns the decoded claims.
// Every failure mode collapses into ErrInvalidToken.
func (s *Service) parseToken(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// newOpaqueToken returns a random URL-safe refresh token string.
func newOpaqueToken() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("auth: entropy source unavailable")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

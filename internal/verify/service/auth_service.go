package service

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "dailycode/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService validates bearer tokens issued by the external auth service.
// The learner id is the token subject.
type AuthService struct {
	jwtSecret []byte
	jwtIssuer string
}

func NewAuthService(jwtSecret, jwtIssuer string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret), jwtIssuer: jwtIssuer}
}

type tokenClaims struct {
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate returns the learner id carried by raw.
func (s *AuthService) Authenticate(raw string) (string, error) {
	if raw == "" {
		return "", pkgerrors.UnauthorizedError("missing bearer token")
	}
	if len(s.jwtSecret) == 0 {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", pkgerrors.New(pkgerrors.TokenExpired)
		}
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	if s.jwtIssuer != "" && claims.Issuer != s.jwtIssuer {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	// Refresh tokens must not reach the API.
	if claims.TokenType != "" && claims.TokenType != "access" {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", pkgerrors.New(pkgerrors.TokenInvalid)
	}
	return subject, nil
}

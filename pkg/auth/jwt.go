package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("token subject is not a principal id")
)

// JWTProvider verifies HS256 access tokens issued by the identity provider.
// The subject claim carries the principal id.
type JWTProvider struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTProvider(secret, issuer string) *JWTProvider {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTProvider{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

// ResolveIdentity returns the principal named by a valid token
func (p *JWTProvider) ResolveIdentity(ctx context.Context, token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := p.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	principal, err := uuid.Parse(claims.Subject)
	if err != nil || principal == uuid.Nil {
		return uuid.Nil, ErrInvalidSubject
	}
	return principal, nil
}

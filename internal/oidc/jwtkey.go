package oidc

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imaginify/imaginify/backend/go-services/pkg/middleware"
)

// JWTKeyVerifier checks RS256 session tokens against a single PEM public key,
// for networkless verification without JWKS discovery.
type JWTKeyVerifier struct {
	key    *rsa.PublicKey
	issuer string
	leeway time.Duration
}

// NewJWTKeyVerifier parses pemKey. Escaped "\n" sequences, as commonly found
// in env files, are accepted. An empty issuer disables the iss check.
func NewJWTKeyVerifier(pemKey, issuer string) (*JWTKeyVerifier, error) {
	pemKey = strings.ReplaceAll(strings.TrimSpace(pemKey), `\n`, "\n")
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("parse jwt key: %w", err)
	}
	return &JWTKeyVerifier{key: key, issuer: issuer, leeway: 5 * time.Second}, nil
}

func (v *JWTKeyVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &claimsToken{claims: claims}, nil
}

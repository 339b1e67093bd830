package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rsaKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func sign(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTKeyVerifier_Valid(t *testing.T) {
	key, pub := rsaKeyPEM(t)
	v, err := NewJWTKeyVerifier(pub, "https://clerk.example.com")
	require.NoError(t, err)

	raw := sign(t, key, jwt.MapClaims{
		"sub": "user_1",
		"iss": "https://clerk.example.com",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	tok, err := v.Verify(context.Background(), raw)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "user_1", claims["sub"])
}

func TestJWTKeyVerifier_EscapedNewlines(t *testing.T) {
	_, pub := rsaKeyPEM(t)
	_, err := NewJWTKeyVerifier(strings.ReplaceAll(pub, "\n", `\n`), "")
	require.NoError(t, err)
}

func TestJWTKeyVerifier_Rejects(t *testing.T) {
	key, pub := rsaKeyPEM(t)
	other, _ := rsaKeyPEM(t)
	v, err := NewJWTKeyVerifier(pub, "https://clerk.example.com")
	require.NoError(t, err)

	cases := map[string]string{
		"expired": sign(t, key, jwt.MapClaims{"sub": "u", "iss": "https://clerk.example.com", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no exp":  sign(t, key, jwt.MapClaims{"sub": "u", "iss": "https://clerk.example.com"}),
		"issuer":  sign(t, key, jwt.MapClaims{"sub": "u", "iss": "https://evil.example.com", "exp": time.Now().Add(time.Minute).Unix()}),
		"key":     sign(t, other, jwt.MapClaims{"sub": "u", "iss": "https://clerk.example.com", "exp": time.Now().Add(time.Minute).Unix()}),
		"garbage": "not.a.jwt",
	}
	for name, raw := range cases {
		_, err := v.Verify(context.Background(), raw)
		assert.Error(t, err, name)
	}
}

func TestNewJWTKeyVerifier_BadPEM(t *testing.T) {
	_, err := NewJWTKeyVerifier("not a key", "")
	assert.Error(t, err)
}

func TestInsecureVerifier(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"user_1"}`))
	tok, err := NewInsecureVerifier().Verify(context.Background(), "e30."+payload+".sig")
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "user_1", claims["sub"])

	_, err = NewInsecureVerifier().Verify(context.Background(), "nodots")
	assert.Error(t, err)
}

func TestNewVerifier_DiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewVerifier(context.Background(), srv.URL, "")
	assert.Error(t, err)
}

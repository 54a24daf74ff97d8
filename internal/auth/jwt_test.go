package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, key *rsa.PrivateKey, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerifyToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewJWTVerifierFromKey(&key.PublicKey)
	exp := time.Now().Add(time.Hour).Unix()

	c, err := v.VerifyToken(sign(t, key, jwt.SigningMethodRS256, jwt.MapClaims{"user_id": "u1", "role": "admin", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, &Claims{Subject: "u1", Role: "admin"}, c)

	c, err = v.VerifyToken(sign(t, key, jwt.SigningMethodRS256, jwt.MapClaims{"sub": "u2", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "u2", c.Subject)
	assert.Empty(t, c.Role)

	_, err = v.VerifyToken(sign(t, key, jwt.SigningMethodRS256, jwt.MapClaims{"sub": "u2", "exp": time.Now().Add(-time.Minute).Unix()}))
	assert.Error(t, err, "expired")

	_, err = v.VerifyToken(sign(t, key, jwt.SigningMethodRS256, jwt.MapClaims{"sub": "u2"}))
	assert.Error(t, err, "missing exp")

	_, err = v.VerifyToken(sign(t, key, jwt.SigningMethodRS256, jwt.MapClaims{"exp": exp}))
	assert.Error(t, err, "no subject")

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = v.VerifyToken(sign(t, other, jwt.SigningMethodRS256, jwt.MapClaims{"sub": "u1", "exp": exp}))
	assert.Error(t, err, "wrong key")

	_, err = v.VerifyToken("not.a.token")
	assert.Error(t, err)
}

func TestNewJWTVerifier_FromFile(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewJWTVerifier(path)
	require.NoError(t, err)
	_, err = v.VerifyToken(sign(t, key, jwt.SigningMethodRS256, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Minute).Unix()}))
	assert.NoError(t, err)

	_, err = NewJWTVerifier(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

package state

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestKeyPair(t *testing.T) (string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	return privPath, pubPath
}

func TestInitSecret_Success(t *testing.T) {
	privPath, pubPath := writeTestKeyPair(t)

	secret, err := InitSecret(privPath, pubPath)

	require.NoError(t, err)
	require.NotNil(t, secret)
	assert.NotNil(t, secret.Private)
	assert.NotNil(t, secret.Public)
	assert.Equal(t, &secret.Private.PublicKey, secret.Public)
}

func TestInitSecret_MissingPrivateKey(t *testing.T) {
	_, pubPath := writeTestKeyPair(t)

	secret, err := InitSecret(filepath.Join(t.TempDir(), "missing.pem"), pubPath)

	assert.Error(t, err)
	assert.Nil(t, secret)
}

func TestInitSecret_MissingPublicKey(t *testing.T) {
	privPath, _ := writeTestKeyPair(t)

	secret, err := InitSecret(privPath, filepath.Join(t.TempDir(), "missing.pem"))

	assert.Error(t, err)
	assert.Nil(t, secret)
}

func TestInitSecret_InvalidPEM(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(badPath, []byte("not a key"), 0o600))

	_, pubPath := writeTestKeyPair(t)

	secret, err := InitSecret(badPath, pubPath)

	assert.Error(t, err)
	assert.Nil(t, secret)
	assert.Contains(t, err.Error(), "invalid private key")
}

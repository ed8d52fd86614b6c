package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return NewProvider(key, &key.PublicKey)
}

func TestIssueVerify_Roundtrip(t *testing.T) {
	p := newTestProvider(t)

	token, clientID, err := p.Issue()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = uuid.Parse(clientID)
	assert.NoError(t, err, "client id should be a uuid")

	got, err := p.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, clientID, got)
}

func TestIssue_DistinctIdentities(t *testing.T) {
	p := newTestProvider(t)

	_, first, err := p.Issue()
	require.NoError(t, err)
	_, second, err := p.Issue()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Verify("not-a-token")
	assert.Error(t, err)

	_, err = p.Verify("")
	assert.Error(t, err)
}

func TestVerify_RejectsForeignKey(t *testing.T) {
	issuer := newTestProvider(t)
	verifier := newTestProvider(t)

	token, _, err := issuer.Issue()
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.Error(t, err, "token signed by another key must be rejected")
}

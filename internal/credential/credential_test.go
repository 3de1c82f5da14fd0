package credential

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	signer := NewSigner("caller-secret-0123456789", "stablecoin")

	token, err := signer.Issue("alice", "", "", time.Hour)
	require.NoError(t, err)

	claims, err := signer.Verify("Bearer "+token, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := NewSigner("caller-secret-0123456789", "stablecoin").Issue("alice", "", "", time.Hour)
	require.NoError(t, err)

	_, err = NewSigner("another-secret-0123456789", "stablecoin").Verify(token, "")
	assert.Error(t, err)

	_, err = NewSigner("caller-secret-0123456789", "elsewhere").Verify(token, "")
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer := NewSigner("caller-secret-0123456789", "stablecoin")
	signer.clock = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := signer.Issue("alice", "", "", time.Minute)
	require.NoError(t, err)

	signer.clock = time.Now
	_, err = signer.Verify(token, "")
	assert.Error(t, err)
}

func TestServiceCredentialScopedToAudience(t *testing.T) {
	signer := NewSigner("service-secret-0123456789", "stablecoin")
	cred := NewServiceCredential(signer, "ledger")

	token, err := cred.Token("custody")
	require.NoError(t, err)

	claims, err := signer.Verify(token, "custody")
	require.NoError(t, err)
	assert.Equal(t, "ledger", claims.Subject)
	assert.Equal(t, "collaborator", claims.Scope)
	assert.WithinDuration(t, time.Now().Add(ServiceTokenTTL), claims.ExpiresAt.Time, 2*time.Second)

	_, err = signer.Verify(token, "issuance")
	assert.Error(t, err)
}

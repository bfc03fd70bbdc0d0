package wallet

import (
	"context"
	"testing"

	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, creds *types.APICredentials) *Session {
	t.Helper()

	signer, err := NewLocalSigner(&SignerConfig{PrivateKey: testKey})
	require.NoError(t, err)

	return NewSession(&SessionConfig{
		Signer:       signer,
		ProxyAddress: "0x1234567890abcdef1234567890abcdef12345678",
		Credentials:  creds,
	})
}

func TestSession_Connected(t *testing.T) {
	session := newTestSession(t, &types.APICredentials{APIKey: "k", Secret: "s", Passphrase: "p"})

	identity, err := session.Identity()
	require.NoError(t, err)
	assert.Equal(t, "0x1234567890abcdef1234567890abcdef12345678", identity.ProxyAddress)
	assert.NotEmpty(t, identity.Address)

	creds, err := session.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "k", creds.APIKey)

	_, err = session.SignTypedData(context.Background(), testTypedData())
	assert.NoError(t, err)
}

func TestSession_IncompleteCredentials(t *testing.T) {
	session := newTestSession(t, &types.APICredentials{APIKey: "k"})

	_, err := session.Credentials()
	assert.ErrorIs(t, err, types.ErrCredentialsUnavailable)

	// Identity does not depend on credentials.
	_, err = session.Identity()
	assert.NoError(t, err)
}

func TestSession_Disconnect(t *testing.T) {
	session := newTestSession(t, &types.APICredentials{APIKey: "k", Secret: "s", Passphrase: "p"})
	session.Disconnect()
	session.Disconnect()

	_, err := session.Identity()
	assert.ErrorIs(t, err, types.ErrCredentialsUnavailable)

	_, err = session.Credentials()
	assert.ErrorIs(t, err, types.ErrCredentialsUnavailable)

	_, err = session.SignTypedData(context.Background(), testTypedData())
	assert.ErrorIs(t, err, types.ErrCredentialsUnavailable)
}

package ageops

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestDeriveFromSSHKeyIsDeterministic(t *testing.T) {
	path := writeSSHKey(t)

	first, err := DeriveFromSSHKey(path)
	require.NoError(t, err)
	second, err := DeriveFromSSHKey(path)
	require.NoError(t, err)

	assert.Equal(t, first.Recipient, second.Recipient)
	assert.Equal(t, first.Identity, second.Identity)
	assert.True(t, strings.HasPrefix(first.Recipient, "age1"))
	assert.True(t, strings.HasPrefix(first.Identity, "AGE-SECRET-KEY-1"))
}

func TestDeriveFromSSHKeyRejectsNonEd25519(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ecdsa")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))

	_, err = DeriveFromSSHKey(path)
	require.Error(t, err)
	var typeErr *UnsupportedKeyTypeError
	require.ErrorAs(t, err, &typeErr)
}

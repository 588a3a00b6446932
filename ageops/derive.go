// Package ageops derives age identities from OpenSSH Ed25519 keys and
// unwraps SOPS data keys wrapped with the resulting age recipients.
//
// Key derivation follows the well-known "reuse your Ed25519 SSH key for
// age" construction: SHA-512 the Ed25519 seed and take the first 32 bytes
// as the X25519 scalar, no RFC 7748 clamping applied to the stored bytes
// (clamping still happens inside X25519 scalar multiplication itself, it
// is just never applied a second time to the identity's bech32 payload).
package ageops

import (
	"crypto/ed25519"
	"fmt"
	"os"

	agesshconv "github.com/Mic92/ssh-to-age"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/mrkirby153/secnix/logging"
)

var log *logrus.Logger

func init() {
	log = logging.NewLogger("AGE")
}

// KeyPair is the bech32-encoded age recipient/identity pair derived from a
// single OpenSSH Ed25519 key.
type KeyPair struct {
	Recipient string
	Identity  string
}

// DeriveFromSSHKey reads the OpenSSH private key at path, verifies it is an
// Ed25519 key, and derives the corresponding age recipient and identity.
func DeriveFromSSHKey(path string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key %s: %w", path, err)
	}

	parsed, err := ssh.ParseRawPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", path, err)
	}

	var seed ed25519.PrivateKey
	switch key := parsed.(type) {
	case *ed25519.PrivateKey:
		seed = *key
	case ed25519.PrivateKey:
		seed = key
	default:
		return nil, &UnsupportedKeyTypeError{Path: path, Type: fmt.Sprintf("%T", parsed)}
	}

	signer, err := ssh.NewSignerFromKey(seed)
	if err != nil {
		return nil, &InvalidKeyError{Path: path, Err: err}
	}
	publicKeyLine := ssh.MarshalAuthorizedKey(signer.PublicKey())

	recipient, err := agesshconv.SSHPublicKeyToAge(publicKeyLine)
	if err != nil {
		return nil, &InvalidKeyError{Path: path, Err: err}
	}
	if recipient == nil {
		return nil, &InvalidKeyError{Path: path, Err: fmt.Errorf("no recipient derived")}
	}

	identity, _, err := agesshconv.SSHPrivateKeyToAge(raw, nil)
	if err != nil {
		return nil, &InvalidKeyError{Path: path, Err: err}
	}
	if identity == nil {
		return nil, &InvalidKeyError{Path: path, Err: fmt.Errorf("no identity derived")}
	}

	log.WithField("path", path).WithField("recipient", *recipient).Debug("Derived age key pair from SSH key")

	return &KeyPair{Recipient: *recipient, Identity: *identity}, nil
}

package ageops

import "fmt"

// UnsupportedKeyTypeError is returned when an SSH private key is not an
// Ed25519 key. Only Ed25519 keys can be converted to age identities.
type UnsupportedKeyTypeError struct {
	Path string
	Type string
}

func (e *UnsupportedKeyTypeError) Error() string {
	return fmt.Sprintf("unsupported key type %q in %s: only ssh-ed25519 keys can be converted to age identities", e.Type, e.Path)
}

// InvalidKeyError wraps a failure to derive an age key from an otherwise
// well-typed SSH key, e.g. a public key whose point fails to decompress or
// decompresses to the identity point.
type InvalidKeyError struct {
	Path string
	Err  error
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %s: %v", e.Path, e.Err)
}

func (e *InvalidKeyError) Unwrap() error { return e.Err }

// InvalidKeyFileError is returned when the armored `enc` blob decodes to a
// passphrase-type age recipient stanza instead of a recipient-type one, or
// the identity file otherwise cannot be used to build a recipients
// decryptor.
type InvalidKeyFileError struct {
	Err error
}

func (e *InvalidKeyFileError) Error() string {
	if e.Err == nil {
		return "invalid age identity file: expected recipient-stanza decryption"
	}
	return fmt.Sprintf("invalid age identity file: %v", e.Err)
}

func (e *InvalidKeyFileError) Unwrap() error { return e.Err }

// KekDecryptionError wraps any failure while age-decrypting a recipient
// stanza to recover the 32-byte SOPS data key.
type KekDecryptionError struct {
	Err error
}

func (e *KekDecryptionError) Error() string {
	return fmt.Sprintf("error decrypting data key: %v", e.Err)
}

func (e *KekDecryptionError) Unwrap() error { return e.Err }

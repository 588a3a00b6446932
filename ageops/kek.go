package ageops

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// LoadIdentities reads the line-oriented age identity file at path and
// parses the secret-key lines into age.Identity values. Comment lines
// (`# <recipient>`) are ignored by age.ParseIdentities, which only looks at
// the bech32 secret-key lines.
func LoadIdentities(path string) ([]age.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity file %s: %w", path, err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity file %s: %w", path, err)
	}
	return identities, nil
}

// RecipientStrings derives the bech32 recipient string for every identity,
// so callers can intersect them against a SOPS document's `age` recipients
// without re-deriving anything.
func RecipientStrings(identities []age.Identity) []string {
	recipients := make([]string, 0, len(identities))
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			recipients = append(recipients, x.Recipient().String())
		}
	}
	return recipients
}

// UnwrapDataKey age-decrypts the armored `enc` field of a SOPS recipient
// stanza using the identities in the identity file at identityFilePath, and
// returns the recovered 32-byte SOPS data key.
func UnwrapDataKey(encArmored string, identityFilePath string) ([]byte, error) {
	raw, err := io.ReadAll(armor.NewReader(strings.NewReader(encArmored)))
	if err != nil {
		return nil, &KekDecryptionError{Err: fmt.Errorf("failed to un-armor recipient stanza: %w", err)}
	}

	if isPassphraseStanza(raw) {
		return nil, &InvalidKeyFileError{Err: fmt.Errorf("recipient stanza uses passphrase-based (scrypt) wrapping, not a recipient key")}
	}

	identities, err := LoadIdentities(identityFilePath)
	if err != nil {
		return nil, &InvalidKeyFileError{Err: err}
	}
	if len(identities) == 0 {
		return nil, &InvalidKeyFileError{Err: fmt.Errorf("no identities found in %s", identityFilePath)}
	}

	r, err := age.Decrypt(bytes.NewReader(raw), identities...)
	if err != nil {
		return nil, &KekDecryptionError{Err: err}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &KekDecryptionError{Err: err}
	}
	if len(data) != 32 {
		return nil, &KekDecryptionError{Err: fmt.Errorf("unwrapped data key has unexpected length %d, want 32", len(data))}
	}
	return data, nil
}

// isPassphraseStanza peeks at the first stanza of an unarmored age file body
// to tell a passphrase (scrypt) recipient apart from a public-key recipient,
// without needing the unexported format package filippo.io/age builds on.
func isPassphraseStanza(body []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "-> ") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "-> "))
		return len(fields) > 0 && fields[0] == "scrypt"
	}
	return false
}

// Package secretdecrypt implements the decryption orchestrator (C5):
// resolve a leaf value in a SOPS document, pick the recipient stanza that
// matches an identity file, unwrap its data key, and AEAD-decrypt the leaf.
package secretdecrypt

import (
	"fmt"
	"strings"

	"github.com/mrkirby153/secnix/ageops"
	"github.com/mrkirby153/secnix/sopsaes"
	"github.com/mrkirby153/secnix/sopsdoc"
)

// MissingDataError is returned when the requested dotted path does not
// resolve to a string leaf in the document.
type MissingDataError struct {
	Path string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing data at key %q", e.Path)
}

// NoAgeRecipientsError is returned when a document's sops metadata carries
// no age recipients at all.
type NoAgeRecipientsError struct {
	Source string
}

func (e *NoAgeRecipientsError) Error() string {
	return fmt.Sprintf("%s: no age recipients found in sops metadata", e.Source)
}

// NoMatchingRecipientError is returned when none of a document's age
// recipients match any identity in the identity file.
type NoMatchingRecipientError struct {
	Source string
}

func (e *NoMatchingRecipientError) Error() string {
	return fmt.Sprintf("%s: no age recipient in the document matches the provided identities", e.Source)
}

// Decrypt resolves path in doc, selects the first sops.age recipient stanza
// whose public key appears among identityFile's identities (in document
// order), unwraps its data key, and AES-256-GCM decrypts the leaf. There is
// no fallback across candidates: if the first matching recipient fails to
// unwrap, the whole operation fails, since any matching recipient should
// succeed against a well-formed document.
func Decrypt(doc *sopsdoc.Document, path []string, identityFile string) (sopsaes.Value, error) {
	leaf, ok := doc.GetKey(path)
	if !ok {
		return sopsaes.Value{}, &MissingDataError{Path: strings.Join(path, ".")}
	}

	meta := doc.Metadata()
	if len(meta.Age) == 0 {
		return sopsaes.Value{}, &NoAgeRecipientsError{Source: doc.Path()}
	}

	identities, err := ageops.LoadIdentities(identityFile)
	if err != nil {
		return sopsaes.Value{}, err
	}
	known := make(map[string]bool, len(identities))
	for _, r := range ageops.RecipientStrings(identities) {
		known[r] = true
	}

	var candidate *sopsdoc.AgeStanza
	for i := range meta.Age {
		if known[meta.Age[i].Recipient] {
			candidate = &meta.Age[i]
			break
		}
	}
	if candidate == nil {
		return sopsaes.Value{}, &NoMatchingRecipientError{Source: doc.Path()}
	}

	dataKey, err := ageops.UnwrapDataKey(candidate.Enc, identityFile)
	if err != nil {
		return sopsaes.Value{}, err
	}

	return sopsaes.Decrypt(leaf, dataKey, path)
}

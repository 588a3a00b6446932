package generation

import "fmt"

// OwnerLookupError is a non-fatal warning surfaced when a configured
// owner/group name doesn't resolve on the local system.
type OwnerLookupError struct {
	Name string
	Err  error
}

func (e *OwnerLookupError) Error() string {
	return fmt.Sprintf("could not resolve user/group %q: %v", e.Name, e.Err)
}

func (e *OwnerLookupError) Unwrap() error { return e.Err }

// MissingSecretKeyWarning is surfaced (non-fatally) when a secret has no
// effective key and is skipped during materialization.
type MissingSecretKeyWarning struct {
	Name string
}

func (e *MissingSecretKeyWarning) Error() string {
	return fmt.Sprintf("secret %q has no effective key; skipping", e.Name)
}

package main

import (
	"fmt"
	"strings"

	"github.com/mrkirby153/secnix/manifest"
	"github.com/mrkirby153/secnix/sopsdoc"
)

// runCheck validates a manifest without decrypting anything: duplicate
// secret names, resolvable effective keys, loadable SOPS documents, and
// non-empty age recipient lists. It fails fast at the first offending
// secret, naming its source, per §7's check recovery policy.
func runCheck(manifestPath string) error {
	m, err := loadManifestExpanded(manifestPath)
	if err != nil {
		return err
	}

	if name, dup := manifest.FindDuplicateSecretName(m.Secrets); dup {
		return fmt.Errorf("duplicate secret name %q", name)
	}

	for _, s := range m.Secrets {
		if err := checkSecret(s); err != nil {
			return fmt.Errorf("%s: %w", s.Source, err)
		}
	}

	log.Info("Manifest check passed")
	return nil
}

func checkSecret(s manifest.Secret) error {
	key, ok := s.EffectiveKey()
	if !ok {
		return fmt.Errorf("secret %q has no key and is not binary", s.Name)
	}

	doc, err := sopsdoc.Load(s.Source)
	if err != nil {
		return err
	}

	meta := doc.Metadata()
	if len(meta.Age) == 0 {
		return fmt.Errorf("no age recipients in sops metadata")
	}

	if _, ok := doc.GetKey(strings.Split(key, ".")); !ok {
		return fmt.Errorf("key %q not found", key)
	}

	return nil
}

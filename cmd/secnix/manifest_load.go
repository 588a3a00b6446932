package main

import (
	"fmt"

	"github.com/mitchellh/go-homedir"

	"github.com/mrkirby153/secnix/manifest"
)

// loadManifestExpanded loads the manifest at manifestPath (tilde-expanded),
// then tilde-expands every ssh_keys entry and substitutes %r in
// secret_directory, so both check and install see a fully-resolved
// manifest.
func loadManifestExpanded(manifestPath string) (*manifest.Manifest, error) {
	expandedPath, err := homedir.Expand(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand manifest path %s: %w", manifestPath, err)
	}

	m, err := manifest.Load(expandedPath)
	if err != nil {
		return nil, err
	}

	for i, keyPath := range m.SSHKeys {
		expanded, err := homedir.Expand(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to expand ssh key path %s: %w", keyPath, err)
		}
		m.SSHKeys[i] = expanded
	}

	secretDir, err := expandSecretDirectory(m.SecretDirectory)
	if err != nil {
		return nil, err
	}
	m.SecretDirectory = secretDir

	return m, nil
}

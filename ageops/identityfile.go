package ageops

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// IdentityFileName is the basename of the generated age identity file
// inside a basedir, matching the on-disk layout in spec.md §6.
const IdentityFileName = "keys.txt"

// WriteIdentityFile derives an age key pair from every path in sshKeys and
// appends it to <basedir>/keys.txt, creating the file with mode 0600 and
// removing any pre-existing file first. It returns the identity file path.
func WriteIdentityFile(basedir string, sshKeys []string) (string, error) {
	path := filepath.Join(basedir, IdentityFileName)

	if _, err := os.Stat(path); err == nil {
		log.WithField("path", path).Debug("Removing existing identity file")
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove existing identity file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat identity file %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create identity file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, keyPath := range sshKeys {
		pair, err := DeriveFromSSHKey(keyPath)
		if err != nil {
			return "", err
		}
		log.WithField("recipient", pair.Recipient).Info("Importing SSH key")
		if _, err := fmt.Fprintf(w, "# %s\n", pair.Recipient); err != nil {
			return "", fmt.Errorf("failed to write identity file %s: %w", path, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", pair.Identity); err != nil {
			return "", fmt.Errorf("failed to write identity file %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush identity file %s: %w", path, err)
	}

	return path, nil
}

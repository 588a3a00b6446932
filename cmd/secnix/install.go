package main

import (
	"fmt"
	"os"

	"github.com/mrkirby153/secnix/ageops"
	"github.com/mrkirby153/secnix/generation"
)

// runInstall performs a full install against the manifest at manifestPath:
// derive the identity file from its ssh_keys, stage and activate a new
// generation, publish destinations, and garbage-collect old generations.
func runInstall(manifestPath string) error {
	m, err := loadManifestExpanded(manifestPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.SecretDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create secret directory %s: %w", m.SecretDirectory, err)
	}

	identityFile, err := ageops.WriteIdentityFile(m.SecretDirectory, m.SSHKeys)
	if err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}

	result, err := generation.Install(m.SecretDirectory, m, identityFile)
	if err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	log.WithField("generation", result.GenerationID).Info("Install complete")
	for _, warning := range result.Warnings {
		log.Warn(warning)
	}

	if err := generation.CleanOldGenerations(m.SecretDirectory, generation.DefaultGenerationsToKeep); err != nil {
		log.Warn(fmt.Errorf("failed to clean old generations: %w", err))
	}

	return nil
}

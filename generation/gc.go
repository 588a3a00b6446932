package generation

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultGenerationsToKeep is the retention count the install CLI passes to
// CleanOldGenerations; neither the manifest nor a flag overrides it.
const DefaultGenerationsToKeep = 5

// CleanOldGenerations removes the oldest generation directories from
// basedir until at most toKeep remain, always preserving the active
// generation even when toKeep is 0. Per §9, `to_keep > len` must not
// underflow the remove count.
func CleanOldGenerations(basedir string, toKeep int) error {
	metaPath := filepath.Join(basedir, "metadata.json")
	meta, err := loadFleetMetadata(metaPath)
	if err != nil {
		return fmt.Errorf("failed to load fleet metadata: %w", err)
	}

	timestamps, err := orderedTimestamps(meta)
	if err != nil {
		return err
	}

	total := len(timestamps)
	toRemove := total - toKeep
	if toRemove < 0 {
		toRemove = 0
	}

	// The active generation is skipped rather than popped-and-reinserted:
	// since it's never removed from meta.Generations, it stays at its
	// original timestamp with no extra bookkeeping.
	removed := 0
	for _, ts := range timestamps {
		if removed >= toRemove {
			break
		}
		key := strconv.FormatInt(ts, 10)
		genID := meta.Generations[key]
		if genID == meta.ActiveGeneration {
			continue
		}
		genDir := filepath.Join(basedir, "generations", genID)
		if err := os.RemoveAll(genDir); err != nil {
			log.WithField("generation", genID).Warn(fmt.Errorf("failed to remove generation directory %s: %w", genDir, err))
			continue
		}
		delete(meta.Generations, key)
		removed++
	}

	return saveFleetMetadata(metaPath, meta)
}

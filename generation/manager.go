// Package generation implements the generation manager (C7): the atomic,
// mostly-idempotent install transaction that materializes decrypted
// secrets and rendered templates into a fresh generation directory, flips
// the active-generation symlink, publishes per-destination links/copies,
// prunes stale destinations, and garbage-collects old generations.
//
// Modelled on the teacher's publish package for the "write new content,
// atomically swap the pointer" shape, generalized from a single
// destination-store abstraction to basedir-local generation directories.
package generation

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mrkirby153/secnix/logging"
	"github.com/mrkirby153/secnix/manifest"
	"github.com/mrkirby153/secnix/secretdecrypt"
	"github.com/mrkirby153/secnix/sopsaes"
	"github.com/mrkirby153/secnix/sopsdoc"
)

func nowUnix() int64 { return time.Now().Unix() }

var log = logging.NewLogger("GENERATION")

// DefaultFinalMode is the permission applied to a materialized secret or
// rendered template when no `mode` field is configured.
const DefaultFinalMode = 0o400

// placeholderPrefix and placeholderSuffix bracket a template's secret
// reference: `$$SECNIX::<name>::SECNIX$$`.
const (
	placeholderPrefix = "$$SECNIX::"
	placeholderSuffix = "::SECNIX$$"
)

// InstallResult reports the outcome of a successful install.
type InstallResult struct {
	GenerationID string
	Warnings     []error
}

// splitDottedPath splits a manifest key like "db.primary.password" into its
// path components.
func splitDottedPath(key string) []string {
	return strings.Split(key, ".")
}

// Install runs the full install transaction against basedir for manifest m,
// using identityFilePath to decrypt secrets. It returns the new
// generation's id and any non-fatal warnings collected along the way.
func Install(basedir string, m *manifest.Manifest, identityFilePath string) (*InstallResult, error) {
	result := &InstallResult{}
	warn := func(err error) {
		log.Warn(err)
		result.Warnings = append(result.Warnings, err)
	}

	genID := ulid.Make().String()
	result.GenerationID = genID
	genDir := filepath.Join(basedir, "generations", genID)

	if err := os.MkdirAll(genDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create generation directory %s: %w", genDir, err)
	}

	// (b) Compute the expected published set and persist it before writing
	// any secret, so a crash leaves a recognizably-partial generation.
	published := make([]string, 0, len(m.Secrets)+len(m.Templates))
	for _, s := range m.Secrets {
		if s.Link != nil {
			published = append(published, *s.Link)
		}
	}
	for _, t := range m.Templates {
		published = append(published, t.Destination)
	}
	genMetaPath := filepath.Join(genDir, ".metadata.json")
	if err := saveGenerationMetadata(genMetaPath, &GenerationMetadata{Generation: genID, SecretFiles: published}); err != nil {
		return nil, fmt.Errorf("failed to persist generation metadata: %w", err)
	}

	// (c) Materialize secrets.
	secretsTable := make(map[string]string, len(m.Secrets))
	for _, s := range m.Secrets {
		if err := materializeSecret(genDir, s, identityFilePath, secretsTable, warn); err != nil {
			return nil, fmt.Errorf("failed to materialize secret %q: %w", s.Name, err)
		}
	}

	// (d) Render templates.
	if len(m.Templates) > 0 {
		renderedDir := filepath.Join(genDir, "rendered")
		if err := os.MkdirAll(renderedDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create rendered directory %s: %w", renderedDir, err)
		}
		for _, t := range m.Templates {
			if err := renderTemplate(renderedDir, t, secretsTable, warn); err != nil {
				return nil, fmt.Errorf("failed to render template %q: %w", t.Name, err)
			}
		}
	}

	// (e) Atomically flip the active pointer; this is the linearization
	// point. Everything after this is surfaced as warnings, not aborted,
	// because visibility has already committed.
	if err := flipActiveSymlink(basedir, genDir); err != nil {
		return nil, fmt.Errorf("failed to activate generation %s: %w", genID, err)
	}
	log.WithField("generation", genID).Info("Activated generation")

	secretsLink := filepath.Join(basedir, "secrets")

	// (f) Publish per-destination links/copies.
	for _, s := range m.Secrets {
		if s.Link == nil {
			continue
		}
		target := filepath.Join(secretsLink, s.Name)
		if err := atomicSymlink(target, *s.Link); err != nil {
			warn(fmt.Errorf("failed to publish secret %q to %s: %w", s.Name, *s.Link, err))
		}
	}
	for _, t := range m.Templates {
		if t.Copy {
			renderedPath := filepath.Join(genDir, "rendered", t.Name)
			if err := atomicCopyFile(renderedPath, t.Destination); err != nil {
				warn(fmt.Errorf("failed to publish template %q to %s: %w", t.Name, t.Destination, err))
			}
			continue
		}
		target := filepath.Join(secretsLink, "rendered", t.Name)
		if err := atomicSymlink(target, t.Destination); err != nil {
			warn(fmt.Errorf("failed to publish template %q to %s: %w", t.Name, t.Destination, err))
		}
	}

	// (g) Update fleet metadata, capturing the previously-active generation
	// for the stale-pruning pass below.
	metaPath := filepath.Join(basedir, "metadata.json")
	fleetMeta, err := loadFleetMetadata(metaPath)
	if err != nil {
		warn(fmt.Errorf("failed to load fleet metadata: %w", err))
		fleetMeta = &FleetMetadata{Generations: map[string]string{}}
	}
	previousActive := fleetMeta.ActiveGeneration
	fleetMeta.Generations[strconv.FormatInt(nowUnix(), 10)] = genID
	fleetMeta.ActiveGeneration = genID

	// (h) Prune stale destinations from the previous generation.
	if previousActive != "" && previousActive != genID {
		prevMetaPath := filepath.Join(basedir, "generations", previousActive, ".metadata.json")
		if prevMeta, err := loadGenerationMetadata(prevMetaPath); err != nil {
			warn(fmt.Errorf("failed to load previous generation metadata: %w", err))
		} else {
			pruneStaleDestinations(prevMeta.SecretFiles, published, warn)
		}
	}

	// (i) Persist fleet metadata.
	if err := saveFleetMetadata(metaPath, fleetMeta); err != nil {
		warn(fmt.Errorf("failed to persist fleet metadata: %w", err))
	}

	return result, nil
}

func pruneStaleDestinations(previous, current []string, warn func(error)) {
	currentSet := make(map[string]bool, len(current))
	for _, p := range current {
		currentSet[p] = true
	}
	for _, p := range previous {
		if currentSet[p] {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			warn(fmt.Errorf("failed to remove stale destination %s: %w", p, err))
		}
	}
}

func materializeSecret(genDir string, s manifest.Secret, identityFilePath string, secretsTable map[string]string, warn func(error)) error {
	key, ok := s.EffectiveKey()
	if !ok {
		warn(&MissingSecretKeyWarning{Name: s.Name})
		return nil
	}

	doc, err := sopsdoc.Load(s.Source)
	if err != nil {
		return err
	}

	value, err := secretdecrypt.Decrypt(doc, splitDottedPath(key), identityFilePath)
	if err != nil {
		return err
	}

	var content []byte
	switch {
	case value.Kind == sopsaes.KindBytes:
		content = value.Bytes
	case value.Kind == sopsaes.KindComment:
		warn(fmt.Errorf("secret %q decrypts to a comment value; writing empty file", s.Name))
	default:
		str, _ := value.Stringify()
		content = []byte(str)
	}

	destPath := filepath.Join(genDir, s.Name)
	if err := os.WriteFile(destPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write secret file %s: %w", destPath, err)
	}

	if str, ok := value.Stringify(); ok {
		secretsTable[s.Name] = str
	}

	applyFinalPermissions(destPath, s.Mode, s.Owner, s.Group, warn)
	return nil
}

func renderTemplate(renderedDir string, t manifest.Template, secretsTable map[string]string, warn func(error)) error {
	raw, err := os.ReadFile(t.Source)
	if err != nil {
		return fmt.Errorf("failed to read template source %s: %w", t.Source, err)
	}

	rendered := substitutePlaceholders(string(raw), secretsTable)

	destPath := filepath.Join(renderedDir, t.Name)
	if err := os.WriteFile(destPath, []byte(rendered), 0o600); err != nil {
		return fmt.Errorf("failed to write rendered template %s: %w", destPath, err)
	}

	applyFinalPermissions(destPath, t.Mode, t.Owner, t.Group, warn)
	return nil
}

// substitutePlaceholders replaces every `$$SECNIX::<name>::SECNIX$$`
// occurrence with secretsTable[name]'s stringified value; placeholders
// referencing an unknown or non-substitutable name are left untouched.
func substitutePlaceholders(content string, secretsTable map[string]string) string {
	var b strings.Builder
	rest := content
	for {
		start := strings.Index(rest, placeholderPrefix)
		if start == -1 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		afterPrefix := rest[start+len(placeholderPrefix):]
		end := strings.Index(afterPrefix, placeholderSuffix)
		if end == -1 {
			b.WriteString(rest[start:])
			break
		}
		name := afterPrefix[:end]
		if value, ok := secretsTable[name]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(placeholderPrefix + name + placeholderSuffix)
		}
		rest = afterPrefix[end+len(placeholderSuffix):]
	}
	return b.String()
}

// applyFinalPermissions sets path's mode (configured or DefaultFinalMode)
// and, if owner/group are configured, its ownership. All failures here are
// warnings: the file already exists with a safe initial mode.
func applyFinalPermissions(path string, mode manifest.Mode, owner, group *string, warn func(error)) {
	finalMode := os.FileMode(DefaultFinalMode)
	if configured, ok, err := mode.FileMode(); err != nil {
		warn(fmt.Errorf("invalid mode for %s: %w", path, err))
	} else if ok {
		finalMode = configured
	}
	if err := os.Chmod(path, finalMode); err != nil {
		warn(fmt.Errorf("failed to chmod %s: %w", path, err))
	}

	uid, gid := -1, -1
	if owner != nil {
		if u, err := user.Lookup(*owner); err != nil {
			warn(&OwnerLookupError{Name: *owner, Err: err})
		} else if parsed, err := strconv.Atoi(u.Uid); err == nil {
			uid = parsed
		}
	}
	if group != nil {
		if g, err := user.LookupGroup(*group); err != nil {
			warn(&OwnerLookupError{Name: *group, Err: err})
		} else if parsed, err := strconv.Atoi(g.Gid); err == nil {
			gid = parsed
		}
	}
	if uid != -1 || gid != -1 {
		if err := os.Chown(path, uid, gid); err != nil {
			warn(fmt.Errorf("failed to chown %s: %w", path, err))
		}
	}
}

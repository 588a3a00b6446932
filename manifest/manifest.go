// Package manifest parses and exposes the declarative manifest format (C6):
// the list of secrets and templates to install, the SSH keys to derive age
// identities from, and the target secret_directory. Modelled on the
// teacher's typed config structs, but JSON-only since that's the manifest
// format mandated by §6.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// MaxSupportedVersion is the highest manifest `version` this build accepts.
const MaxSupportedVersion = 1

// FileType is a Secret's declared plaintext encoding.
type FileType int

const (
	FileTypeJSON FileType = iota
	FileTypeYAML
	FileTypeBinary
)

func (t *FileType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "json":
		*t = FileTypeJSON
	case "yaml", "yml":
		*t = FileTypeYAML
	case "binary":
		*t = FileTypeBinary
	default:
		return fmt.Errorf("unknown file_type %q", s)
	}
	return nil
}

func (t FileType) MarshalJSON() ([]byte, error) {
	switch t {
	case FileTypeJSON:
		return json.Marshal("json")
	case FileTypeYAML:
		return json.Marshal("yaml")
	case FileTypeBinary:
		return json.Marshal("binary")
	default:
		return nil, fmt.Errorf("unknown file_type %d", t)
	}
}

func (t FileType) String() string {
	switch t {
	case FileTypeJSON:
		return "json"
	case FileTypeYAML:
		return "yaml"
	case FileTypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Mode is a permission field given as decimal digits meant to be read as
// octal (manifest `400` means 0o400), accepted as either a JSON number or a
// JSON string.
type Mode struct {
	set   bool
	value string
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		m.value = asNumber.String()
		m.set = true
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return fmt.Errorf("mode must be a number or string: %w", err)
	}
	m.value = asString
	m.set = true
	return nil
}

// FileMode parses the digits as octal and returns the resulting
// os.FileMode, or ok=false when the field was absent.
func (m Mode) FileMode() (os.FileMode, bool, error) {
	if !m.set {
		return 0, false, nil
	}
	parsed, err := strconv.ParseUint(m.value, 8, 32)
	if err != nil {
		return 0, false, fmt.Errorf("invalid mode %q: %w", m.value, err)
	}
	return os.FileMode(parsed), true, nil
}

// Secret describes one encrypted source file to decrypt and materialize.
type Secret struct {
	FileType FileType `json:"file_type"`
	Name     string   `json:"name"`
	Source   string   `json:"source"`
	Key      *string  `json:"key,omitempty"`
	Link     *string  `json:"link,omitempty"`
	Mode     Mode     `json:"mode,omitempty"`
	Owner    *string  `json:"owner,omitempty"`
	Group    *string  `json:"group,omitempty"`
}

// EffectiveKey resolves the dotted key path to decrypt per §3: the
// configured key if present, else "data" for binary secrets, else absent.
func (s Secret) EffectiveKey() (string, bool) {
	if s.Key != nil {
		return *s.Key, true
	}
	if s.FileType == FileTypeBinary {
		return "data", true
	}
	return "", false
}

// Template describes a plaintext template with secret placeholders.
type Template struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Copy        bool   `json:"copy,omitempty"`
	Mode        Mode   `json:"mode,omitempty"`
	Owner       *string `json:"owner,omitempty"`
	Group       *string `json:"group,omitempty"`
}

// Manifest is the top-level declarative install specification.
type Manifest struct {
	Version         int        `json:"version"`
	SecretDirectory string     `json:"secret_directory"`
	SSHKeys         []string   `json:"ssh_keys"`
	Secrets         []Secret   `json:"secrets"`
	Templates       []Template `json:"templates"`
}

// UnsupportedVersionError is returned when a manifest's version exceeds
// MaxSupportedVersion.
type UnsupportedVersionError struct {
	Version int
	Max     int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("manifest version %d exceeds maximum supported version %d", e.Version, e.Max)
}

// InvalidManifestError wraps a JSON decode failure of the manifest file.
type InvalidManifestError struct {
	Path string
	Err  error
}

func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("could not parse manifest %s: %v", e.Path, e.Err)
}

func (e *InvalidManifestError) Unwrap() error { return e.Err }

// DuplicateNameError describes two secrets sharing a name. It is not
// returned by FindDuplicateSecretName, which reports the name and a bool.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate secret name %q", e.Name)
}

// Load reads and parses the manifest at path, rejecting unsupported
// versions.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &InvalidManifestError{Path: path, Err: err}
	}

	if m.Version > MaxSupportedVersion {
		return nil, &UnsupportedVersionError{Version: m.Version, Max: MaxSupportedVersion}
	}

	return &m, nil
}

// FindDuplicateSecretName reports the first secret name that appears more
// than once, used by the check pass (duplicate detection is explicitly not
// this package's own responsibility per §4.6).
func FindDuplicateSecretName(secrets []Secret) (string, bool) {
	seen := make(map[string]bool, len(secrets))
	for _, s := range secrets {
		if seen[s.Name] {
			return s.Name, true
		}
		seen[s.Name] = true
	}
	return "", false
}

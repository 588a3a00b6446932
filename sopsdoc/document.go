// Package sopsdoc provides a unified view over JSON- and YAML-flavoured
// SOPS documents: dotted-path lookup of still-encrypted leaf values, and
// access to the document's sops metadata branch. Ported from the teacher's
// stores/yaml and stores/json Unmarshal logic, collapsed into a single
// parser since YAML is a superset of JSON for our purposes (§4.4).
package sopsdoc

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// AgeStanza is one entry of a SOPS document's `sops.age` recipient list.
type AgeStanza struct {
	Recipient string `yaml:"recipient"`
	Enc       string `yaml:"enc"`
}

// Metadata is the `sops` branch of a SOPS document.
type Metadata struct {
	Age               []AgeStanza `yaml:"age"`
	LastModified      string      `yaml:"lastmodified"`
	Mac               string      `yaml:"mac"`
	UnencryptedSuffix string      `yaml:"unencrypted_suffix"`
	Version           string      `yaml:"version"`
}

// ParseError is returned when a file can't be parsed as a YAML-flavoured
// SOPS document (which, per §4.4, also covers JSON input).
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse %s as a sops document: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Document is a loaded, still-encrypted SOPS document.
type Document struct {
	path string
	data map[string]interface{}
	meta Metadata
}

// Load reads path and parses it as a SOPS document.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var wrapper struct {
		Sops Metadata `yaml:"sops"`
	}
	if err := yaml.Unmarshal(raw, &wrapper); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return &Document{path: path, data: data, meta: wrapper.Sops}, nil
}

// Path returns the source path this document was loaded from.
func (d *Document) Path() string {
	return d.path
}

// Metadata returns the document's sops metadata branch.
func (d *Document) Metadata() Metadata {
	return d.meta
}

// GetKey descends path one component at a time. The value at path[0] is
// looked up at the top level; if it is a string, it is returned only when
// path has exactly one component. If it is a mapping, lookup continues one
// component at a time. Any other node type (sequence, number, bool, null),
// or a missing key at any step, terminates the lookup as absent.
func (d *Document) GetKey(path []string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}

	var current interface{} = d.data
	for i, component := range path {
		node, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		value, exists := node[component]
		if !exists {
			return "", false
		}
		if i == len(path)-1 {
			s, ok := value.(string)
			if !ok {
				return "", false
			}
			return s, true
		}
		current = value
	}
	return "", false
}

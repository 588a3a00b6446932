package sopsdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadAndGetKeyTopLevel(t *testing.T) {
	path := writeDoc(t, `
api_token: "ENC[AES256_GCM,data:abc,iv:def,tag:ghi,type:str]"
sops:
  age:
    - recipient: age1exampleexampleexample
      enc: |
        -----BEGIN AGE ENCRYPTED FILE-----
        abc
        -----END AGE ENCRYPTED FILE-----
  lastmodified: "2024-01-01T00:00:00Z"
  mac: "ENC[...]"
  version: "3.7.3"
`)

	doc, err := Load(path)
	require.NoError(t, err)

	value, ok := doc.GetKey([]string{"api_token"})
	require.True(t, ok)
	assert.Equal(t, "ENC[AES256_GCM,data:abc,iv:def,tag:ghi,type:str]", value)

	meta := doc.Metadata()
	require.Len(t, meta.Age, 1)
	assert.Equal(t, "age1exampleexampleexample", meta.Age[0].Recipient)
	assert.Equal(t, "3.7.3", meta.Version)
}

func TestGetKeyNested(t *testing.T) {
	path := writeDoc(t, `
db:
  primary:
    password: "ENC[nested]"
sops:
  age: []
`)

	doc, err := Load(path)
	require.NoError(t, err)

	value, ok := doc.GetKey([]string{"db", "primary", "password"})
	require.True(t, ok)
	assert.Equal(t, "ENC[nested]", value)

	_, ok = doc.GetKey([]string{"db", "primary"})
	assert.False(t, ok, "a mapping node is not a valid leaf")

	_, ok = doc.GetKey([]string{"db", "missing", "password"})
	assert.False(t, ok)
}

func TestGetKeyAbsentIsNotError(t *testing.T) {
	path := writeDoc(t, `
count: 5
sops:
  age: []
`)

	doc, err := Load(path)
	require.NoError(t, err)

	_, ok := doc.GetKey([]string{"count"})
	assert.False(t, ok, "a non-string top-level leaf is absent, not an error")

	_, ok = doc.GetKey([]string{"nonexistent"})
	assert.False(t, ok)

	_, ok = doc.GetKey(nil)
	assert.False(t, ok)
}

func TestLoadParseError(t *testing.T) {
	path := writeDoc(t, "not: valid: yaml: [")

	_, err := Load(path)
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

package secretdecrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/mrkirby153/secnix/sopsaes"
	"github.com/mrkirby153/secnix/sopsdoc"
)

type fixture struct {
	identityFile string
	dataKey      []byte
	identity     *age.X25519Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys.txt")
	content := fmt.Sprintf("# %s\n%s\n", identity.Recipient().String(), identity.String())
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	dataKey := make([]byte, 32)
	_, err = rand.Read(dataKey)
	require.NoError(t, err)

	return &fixture{identityFile: path, dataKey: dataKey, identity: identity}
}

func (f *fixture) wrap(t *testing.T, recipient age.Recipient) string {
	t.Helper()
	var sb strings.Builder
	w := armor.NewWriter(&sb)
	encW, err := age.Encrypt(w, recipient)
	require.NoError(t, err)
	_, err = encW.Write(f.dataKey)
	require.NoError(t, err)
	require.NoError(t, encW.Close())
	require.NoError(t, w.Close())
	return sb.String()
}

func (f *fixture) seal(t *testing.T, plaintext []byte, path []string) string {
	t.Helper()
	block, err := aes.NewCipher(f.dataKey)
	require.NoError(t, err)
	iv := make([]byte, 12)
	_, err = rand.Read(iv)
	require.NoError(t, err)
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	require.NoError(t, err)
	sealed := gcm.Seal(nil, iv, plaintext, []byte(sopsaes.AAD(path)))
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	tag := sealed[len(sealed)-gcm.Overhead():]
	return fmt.Sprintf("ENC[AES256_GCM,data:%s,iv:%s,tag:%s,type:str]",
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(tag),
	)
}

func (f *fixture) writeDoc(t *testing.T, recipients []age.Recipient, ages []string) *sopsdoc.Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s.yaml")
	envelope := f.seal(t, []byte("plaintext-value"), []string{"secret"})

	type ageEntry struct {
		Recipient string `yaml:"recipient"`
		Enc       string `yaml:"enc"`
	}
	entries := make([]ageEntry, len(recipients))
	for i, r := range recipients {
		entries[i] = ageEntry{Recipient: ages[i], Enc: f.wrap(t, r)}
	}

	doc := map[string]interface{}{
		"secret": envelope,
		"sops": map[string]interface{}{
			"age": entries,
		},
	}
	encoded, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, encoded, 0644))

	loaded, err := sopsdoc.Load(path)
	require.NoError(t, err)
	return loaded
}

func TestDecryptSuccess(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, []age.Recipient{f.identity.Recipient()}, []string{f.identity.Recipient().String()})

	value, err := Decrypt(doc, []string{"secret"}, f.identityFile)
	require.NoError(t, err)
	assert.Equal(t, "plaintext-value", value.Str)
}

func TestDecryptMissingKey(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, []age.Recipient{f.identity.Recipient()}, []string{f.identity.Recipient().String()})

	_, err := Decrypt(doc, []string{"nonexistent"}, f.identityFile)
	require.Error(t, err)
	var missingErr *MissingDataError
	require.ErrorAs(t, err, &missingErr)
}

func TestDecryptNoMatchingRecipient(t *testing.T) {
	f := newFixture(t)
	otherIdentity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	doc := f.writeDoc(t, []age.Recipient{otherIdentity.Recipient()}, []string{otherIdentity.Recipient().String()})

	_, err = Decrypt(doc, []string{"secret"}, f.identityFile)
	require.Error(t, err)
	var noMatchErr *NoMatchingRecipientError
	require.ErrorAs(t, err, &noMatchErr)
}

func TestDecryptNoAgeRecipients(t *testing.T) {
	f := newFixture(t)
	doc := f.writeDoc(t, nil, nil)

	_, err := Decrypt(doc, []string{"secret"}, f.identityFile)
	require.Error(t, err)
	var noAgeErr *NoAgeRecipientsError
	require.ErrorAs(t, err, &noAgeErr)
}

// Package secrets seals credentials as ENC[age:...] values and opens them
// when the configuration or environment is loaded.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"github.com/claybowl/taygency/internal/config"
)

const (
	encPrefix = "ENC[age:"
	encSuffix = "]"
)

// ErrNotEncrypted is returned when opening a value that is not an ENC[age:...] blob.
var ErrNotEncrypted = errors.New("secrets: value is not encrypted")

// IsEncrypted reports whether s is an ENC[age:...] blob.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, encPrefix) && strings.HasSuffix(s, encSuffix)
}

// Keyring holds the workspace's age identity.
type Keyring struct {
	identity *age.X25519Identity
}

// NewKeyring wraps an existing identity.
func NewKeyring(identity *age.X25519Identity) *Keyring {
	return &Keyring{identity: identity}
}

// GenerateKeyring creates an X25519 identity at path (mode 0600) unless one
// exists, then loads it. created reports whether a new key was written.
func GenerateKeyring(path string) (k *Keyring, created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		k, err := LoadKeyring(path)
		return k, false, err
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, false, fmt.Errorf("generate age identity: %w", err)
	}
	content := fmt.Sprintf("# created by taygency\n# public key: %s\n%s\n", identity.Recipient(), identity)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, false, fmt.Errorf("write age key: %w", err)
	}
	return NewKeyring(identity), true, nil
}

// LoadKeyring reads the first X25519 identity in the file at path.
func LoadKeyring(path string) (*Keyring, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open age key: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse age key %s: %w", path, err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return NewKeyring(x), nil
		}
	}
	return nil, fmt.Errorf("no X25519 identity in %s", path)
}

// Recipient returns the public key that Seal encrypts to.
func (k *Keyring) Recipient() string {
	return k.identity.Recipient().String()
}

// Seal encrypts plaintext into an ENC[age:...] blob.
func (k *Keyring) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, k.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	return encPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()) + encSuffix, nil
}

// Open decrypts an ENC[age:...] blob.
func (k *Keyring) Open(blob string) (string, error) {
	if !IsEncrypted(blob) {
		return "", ErrNotEncrypted
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob[len(encPrefix) : len(blob)-len(encSuffix)])
	if err != nil {
		return "", fmt.Errorf("age decrypt: base64: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), k.identity)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	return string(plain), nil
}

// reveal opens *s in place when it is encrypted.
func (k *Keyring) reveal(field string, s *string) error {
	if !IsEncrypted(*s) {
		return nil
	}
	plain, err := k.Open(*s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*s = plain
	return nil
}

// OpenConfig decrypts every credential field of cfg that holds an ENC blob.
func (k *Keyring) OpenConfig(cfg *config.Config) error {
	if err := k.reveal("storage.github.token", &cfg.Storage.GitHub.Token); err != nil {
		return err
	}
	for name, p := range cfg.Models.Providers {
		if err := k.reveal("models.providers."+name+".auth.api_key", &p.Auth.APIKey); err != nil {
			return err
		}
		if err := k.reveal("models.providers."+name+".auth.token", &p.Auth.Token); err != nil {
			return err
		}
		cfg.Models.Providers[name] = p
	}
	return nil
}

// OpenEnviron decrypts environment variables whose value is an ENC blob.
func (k *Keyring) OpenEnviron() error {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !IsEncrypted(value) {
			continue
		}
		plain, err := k.Open(value)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		if err := os.Setenv(key, plain); err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
	}
	return nil
}

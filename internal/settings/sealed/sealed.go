// Package sealed wraps a settings.Medium so that values are encrypted at
// rest. Keys stay in the clear; every value is sealed with
// XChaCha20-Poly1305 under a key derived from a passphrase with argon2id,
// using the entry key as associated data so ciphertexts cannot be swapped
// between keys.
//
// The inner medium holds three bookkeeping entries under the reserved
// "_sealed." prefix: the KDF salt, the KDF parameters, and a check value
// used to reject a wrong passphrase on Load.
package sealed

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"settings-lite/internal/settings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ReservedPrefix marks bookkeeping keys in the inner medium.
const ReservedPrefix = "_sealed."

const (
	saltKey  = ReservedPrefix + "salt"
	paramKey = ReservedPrefix + "kdf"
	checkKey = ReservedPrefix + "check"

	checkPlaintext = "settings-lite sealed v1"
	saltLen        = 16
)

var (
	// ErrWrongPassphrase is returned by Load when the passphrase does not
	// match the one the medium was sealed with.
	ErrWrongPassphrase = errors.New("wrong passphrase for sealed settings")

	// ErrReservedKey is returned by Save when a caller key uses ReservedPrefix.
	ErrReservedKey = errors.New("key uses the reserved sealed prefix")
)

// KDFParams are argon2id cost parameters.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams follow the argon2 package recommendation for argon2id.
var DefaultKDFParams = KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}

func (p KDFParams) String() string {
	return fmt.Sprintf("argon2id:t=%d,m=%d,p=%d", p.Time, p.Memory, p.Threads)
}

func parseKDFParams(s string) (KDFParams, error) {
	var p KDFParams
	if _, err := fmt.Sscanf(s, "argon2id:t=%d,m=%d,p=%d", &p.Time, &p.Memory, &p.Threads); err != nil {
		return KDFParams{}, fmt.Errorf("%w: kdf parameters %q", settings.ErrCorrupt, s)
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return KDFParams{}, fmt.Errorf("%w: kdf parameters %q", settings.ErrCorrupt, s)
	}
	return p, nil
}

// Medium encrypts values on their way to an inner Medium.
type Medium struct {
	inner      settings.Medium
	passphrase []byte
	params     KDFParams

	salt []byte
	key  []byte
}

// Option configures a Medium.
type Option func(*Medium)

// WithKDFParams sets the cost parameters used when the medium is first
// sealed. Existing media keep the parameters they were sealed with.
func WithKDFParams(p KDFParams) Option {
	return func(m *Medium) { m.params = p }
}

// New wraps inner. The returned Medium owns inner and closes it.
func New(inner settings.Medium, passphrase string, opts ...Option) (*Medium, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("sealed settings need a passphrase")
	}
	m := &Medium{inner: inner, passphrase: []byte(passphrase), params: DefaultKDFParams}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Load reads and decrypts the inner medium.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	raw, err := m.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]settings.Value{}, nil
	}

	salt, err := reservedBytes(raw, saltKey)
	if err != nil {
		return nil, err
	}
	paramText, err := reservedString(raw, paramKey)
	if err != nil {
		return nil, err
	}
	params, err := parseKDFParams(paramText)
	if err != nil {
		return nil, err
	}
	check, err := reservedBytes(raw, checkKey)
	if err != nil {
		return nil, err
	}

	key := deriveKey(m.passphrase, salt, params)
	plain, err := open(key, check, checkKey)
	if err != nil || string(plain) != checkPlaintext {
		return nil, ErrWrongPassphrase
	}
	m.salt, m.key, m.params = salt, key, params

	out := make(map[string]settings.Value, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, ReservedPrefix) {
			continue
		}
		sealedText, err := v.AsString()
		if err != nil || v.Kind() != settings.KindString {
			return nil, fmt.Errorf("%w: key %q is not sealed", settings.ErrCorrupt, k)
		}
		sealedBytes, err := base64.StdEncoding.DecodeString(sealedText)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", settings.ErrCorrupt, k, err)
		}
		plain, err := open(key, sealedBytes, k)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", settings.ErrCorrupt, k, err)
		}
		var val settings.Value
		if err := val.UnmarshalBinary(plain); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

// Save encrypts entries and saves them to the inner medium.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	if m.key == nil {
		salt := make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("generating salt: %w", err)
		}
		m.salt = salt
		m.key = deriveKey(m.passphrase, salt, m.params)
	}

	check, err := seal(m.key, []byte(checkPlaintext), checkKey)
	if err != nil {
		return err
	}
	out := make(map[string]settings.Value, len(entries)+3)
	out[saltKey] = settings.StringValue(base64.StdEncoding.EncodeToString(m.salt))
	out[paramKey] = settings.StringValue(m.params.String())
	out[checkKey] = settings.StringValue(base64.StdEncoding.EncodeToString(check))

	for k, v := range entries {
		if strings.HasPrefix(k, ReservedPrefix) {
			return fmt.Errorf("%q: %w", k, ErrReservedKey)
		}
		plain, err := v.MarshalBinary()
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		ct, err := seal(m.key, plain, k)
		if err != nil {
			return err
		}
		out[k] = settings.StringValue(base64.StdEncoding.EncodeToString(ct))
	}
	return m.inner.Save(ctx, out)
}

// Close closes the inner medium and forgets the derived key.
func (m *Medium) Close() error {
	clear(m.key)
	m.key = nil
	return m.inner.Close()
}

func deriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, chacha20poly1305.KeySize)
}

// seal returns nonce || ciphertext.
func seal(key, plain []byte, ad string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, []byte(ad)), nil
}

func open(key, data []byte, ad string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], []byte(ad))
}

func reservedString(raw map[string]settings.Value, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v.Kind() != settings.KindString {
		return "", fmt.Errorf("%w: missing %s", settings.ErrCorrupt, key)
	}
	return v.Text(), nil
}

func reservedBytes(raw map[string]settings.Value, key string) ([]byte, error) {
	s, err := reservedString(raw, key)
	if err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", settings.ErrCorrupt, key, err)
	}
	return b, nil
}

// Compile-time check that Medium implements settings.Medium.
var _ settings.Medium = (*Medium)(nil)

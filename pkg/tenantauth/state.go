package tenantauth

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/dmitrymomot/multitenant/pkg/tenant"
)

const (
	// KeySize is the minimum length of the state secret.
	KeySize = chacha20poly1305.KeySize

	// DefaultStateTTL bounds how long a challenge may take to come back.
	DefaultStateTTL = 10 * time.Minute

	// hkdfInfo separates the state key from other keys derived from the same secret.
	hkdfInfo = "multitenant-auth-state-v1"
)

type statePayload struct {
	Properties tenant.Properties `json:"p"`
	ExpiresAt  int64             `json:"e"`
}

// StateCodec seals an authentication property bag into an opaque, tamper
// proof OAuth state value.
type StateCodec struct {
	aead cipher.AEAD
	ttl  time.Duration
	now  func() time.Time
}

// StateOption configures a StateCodec.
type StateOption func(*StateCodec)

// WithStateTTL sets how long a sealed state stays valid.
func WithStateTTL(ttl time.Duration) StateOption {
	return func(c *StateCodec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces the time source. Useful in tests.
func WithClock(now func() time.Time) StateOption {
	return func(c *StateCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewStateCodec derives the sealing key from secret with HKDF-SHA-256.
func NewStateCodec(secret []byte, opts ...StateOption) (*StateCodec, error) {
	if len(secret) < KeySize {
		return nil, ErrInvalidSecret
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}

	c := &StateCodec{
		aead: aead,
		ttl:  DefaultStateTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Seal encrypts props. The result is URL safe.
func (c *StateCodec) Seal(props tenant.Properties) (string, error) {
	plain, err := json.Marshal(statePayload{
		Properties: props,
		ExpiresAt:  c.now().Add(c.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a state produced by Seal.
func (c *StateCodec) Open(state string) (tenant.Properties, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return nil, ErrInvalidState
	}

	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, ErrInvalidState
	}

	var p statePayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}
	if c.now().Unix() > p.ExpiresAt {
		return nil, ErrStateExpired
	}
	if p.Properties == nil {
		p.Properties = tenant.Properties{}
	}
	return p.Properties, nil
}

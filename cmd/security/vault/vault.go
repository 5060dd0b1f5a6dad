package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeTag     = "vault"
	envelopeVersion = "v=1"
	saltLength      = 16
)

// Params controls Argon2id key derivation cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams is tuned for an interactive CLI unlocking one small file.
func DefaultParams() Params {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
	}
}

// Vault seals and opens payloads with a fixed passphrase.
type Vault struct {
	passphrase []byte
	params     Params
}

// New returns a Vault. Zero params fall back to DefaultParams.
func New(passphrase string, params Params) (*Vault, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if params == (Params{}) {
		params = DefaultParams()
	}
	return &Vault{passphrase: []byte(passphrase), params: params}, nil
}

// Seal encrypts plaintext under a fresh salt and nonce.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(v.derive(salt, v.params))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	header := header(v.params)
	ct := aead.Seal(nil, nonce, plaintext, []byte(header))

	b64 := base64.RawStdEncoding
	out := fmt.Sprintf("%s$%s$%s$%s",
		header,
		b64.EncodeToString(salt),
		b64.EncodeToString(nonce),
		b64.EncodeToString(ct),
	)
	return []byte(out), nil
}

// Open reverses Seal. The header is authenticated, so altering the cost
// parameters fails with ErrDecrypt.
func (v *Vault) Open(sealed []byte) ([]byte, error) {
	params, salt, nonce, ct, err := decode(string(sealed))
	if err != nil {
		return nil, err
	}
	if !withinBounds(params, v.params) {
		return nil, ErrInvalidEnvelope
	}

	aead, err := chacha20poly1305.NewX(v.derive(salt, params))
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrInvalidEnvelope
	}

	pt, err := aead.Open(nil, nonce, ct, []byte(header(params)))
	if err != nil {
		return nil, ErrDecrypt
	}
	return pt, nil
}

// IsSealed reports whether b looks like a vault envelope.
func IsSealed(b []byte) bool {
	return strings.HasPrefix(string(b), "$"+envelopeTag+"$")
}

func (v *Vault) derive(salt []byte, p Params) []byte {
	return argon2.IDKey(v.passphrase, salt, p.Iterations, p.MemoryKiB, p.Parallelism, chacha20poly1305.KeySize)
}

func header(p Params) string {
	return fmt.Sprintf("$%s$%s$m=%d,t=%d,p=%d", envelopeTag, envelopeVersion, p.MemoryKiB, p.Iterations, p.Parallelism)
}

// withinBounds allows envelopes sealed with older/smaller settings but rejects
// wildly larger ones.
func withinBounds(got, limits Params) bool {
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > limits.Parallelism*2 {
		return false
	}
	return true
}

func decode(s string) (Params, []byte, []byte, []byte, error) {
	// "", "vault", "v=1", "m=..,t=..,p=..", salt, nonce, ct
	parts := strings.Split(strings.TrimSpace(s), "$")
	if len(parts) != 7 || parts[0] != "" || parts[1] != envelopeTag || parts[2] != envelopeVersion {
		return Params{}, nil, nil, nil, ErrInvalidEnvelope
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, nil, ErrInvalidEnvelope
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, nil, ErrInvalidEnvelope
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return Params{}, nil, nil, nil, ErrInvalidEnvelope
	}
	nonce, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, nil, ErrInvalidEnvelope
	}
	ct, err := b64.DecodeString(parts[6])
	if err != nil {
		return Params{}, nil, nil, nil, ErrInvalidEnvelope
	}

	p := Params{MemoryKiB: mem, Iterations: it, Parallelism: uint8(par)} // #nosec G115 -- checked above.
	return p, salt, nonce, ct, nil
}

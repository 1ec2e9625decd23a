// Package credentials supplies the marketplace key pair used to sign requests.
//
// Providers are consulted on every signed request so rotated keys take effect
// without restarting the process. The secret half never leaves this package in
// printable form: Secret formats as a redaction marker.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

var (
	// ErrMissingCredentials is returned when no key pair is configured
	ErrMissingCredentials = errors.New("marketplace credentials not configured")
)

// Secret holds key material. It prints as [REDACTED] through every fmt verb,
// slog and zap's Stringer encoding.
type Secret string

func (s Secret) String() string { return redacted }
func (s Secret) GoString() string { return redacted }

// LogValue keeps structured loggers from expanding the value
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalText prevents the secret from leaking through JSON or YAML encoders
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Reveal returns the raw secret. Only the request signer should call it.
func (s Secret) Reveal() string { return string(s) }

// IsZero reports whether no secret is set
func (s Secret) IsZero() bool { return s == "" }

// KeyPair is the public/secret key pair for the marketplace API
type KeyPair struct {
	PublicKey string
	SecretKey Secret
}

// Validate checks both halves are present
func (k KeyPair) Validate() error {
	if strings.TrimSpace(k.PublicKey) == "" || k.SecretKey.IsZero() {
		return ErrMissingCredentials
	}
	return nil
}

func (k KeyPair) String() string {
	return fmt.Sprintf("KeyPair{public=%s, secret=%s}", k.PublicKey, redacted)
}

// Provider yields the current key pair
type Provider interface {
	Credentials(ctx context.Context) (KeyPair, error)
}

// StaticProvider returns a fixed key pair
type StaticProvider struct {
	keys KeyPair
}

// NewStaticProvider creates a provider from fixed keys
func NewStaticProvider(publicKey, secretKey string) *StaticProvider {
	return &StaticProvider{keys: KeyPair{PublicKey: publicKey, SecretKey: Secret(secretKey)}}
}

// NewKeyPairProvider wraps an already loaded key pair
func NewKeyPairProvider(keys KeyPair) *StaticProvider {
	return &StaticProvider{keys: keys}
}

func (p *StaticProvider) Credentials(ctx context.Context) (KeyPair, error) {
	if err := p.keys.Validate(); err != nil {
		return KeyPair{}, err
	}
	return p.keys, nil
}

// Environment variable names read by EnvProvider by default
const (
	EnvPublicKey = "MARKETSCAN_PUBLIC_KEY"
	EnvSecretKey = "MARKETSCAN_SECRET_KEY"
)

// EnvProvider reads the key pair from the environment on every call
type EnvProvider struct {
	publicVar string
	secretVar string
	lookup    func(string) (string, bool)
}

// NewEnvProvider creates a provider for the given variable names; empty names use the defaults
func NewEnvProvider(publicVar, secretVar string) *EnvProvider {
	if publicVar == "" {
		publicVar = EnvPublicKey
	}
	if secretVar == "" {
		secretVar = EnvSecretKey
	}
	return &EnvProvider{publicVar: publicVar, secretVar: secretVar, lookup: os.LookupEnv}
}

func (p *EnvProvider) Credentials(ctx context.Context) (KeyPair, error) {
	pub, _ := p.lookup(p.publicVar)
	sec, _ := p.lookup(p.secretVar)
	keys := KeyPair{PublicKey: strings.TrimSpace(pub), SecretKey: Secret(strings.TrimSpace(sec))}
	if err := keys.Validate(); err != nil {
		return KeyPair{}, fmt.Errorf("%w: set %s and %s", err, p.publicVar, p.secretVar)
	}
	return keys, nil
}

// ChainProvider returns the first provider's successful result
type ChainProvider []Provider

func (c ChainProvider) Credentials(ctx context.Context) (KeyPair, error) {
	var errs []error
	for _, p := range c {
		keys, err := p.Credentials(ctx)
		if err == nil {
			return keys, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return KeyPair{}, ErrMissingCredentials
	}
	return KeyPair{}, errors.Join(errs...)
}

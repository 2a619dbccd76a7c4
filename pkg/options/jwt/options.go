// Package jwt provides options for verifying caller bearer tokens.
//
// Configuration Example (YAML):
//
//	jwt:
//	  disabled: false
//	  key: "your-secret-key-min-32-chars-long"
//	  signing-method: "HS256"
//	  issuer: "retrieval-x"
//	  audience: ["api"]
//
// With disabled set, callers identify themselves with the X-User-ID header.
package jwt

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/retrieval-x/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// DefaultSigningMethod is the default JWT signing algorithm.
	DefaultSigningMethod = "HS256"

	// MinKeyLength is the minimum required key length for HMAC keys.
	MinKeyLength = 32

	// MaxKeyLength is the maximum allowed key length.
	MaxKeyLength = 256
)

// SupportedSigningMethods lists the HMAC algorithms tokens may be signed with.
var SupportedSigningMethods = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Options contains JWT verification configuration.
type Options struct {
	// Disabled turns token verification off (development only).
	Disabled bool `json:"disabled" mapstructure:"disabled"`

	// Key is the HMAC secret. Falls back to the JWT_KEY environment variable.
	Key string `json:"-" mapstructure:"key"`

	SigningMethod string `json:"signing-method" mapstructure:"signing-method"`

	// Issuer, when set, must match the iss claim.
	Issuer string `json:"issuer" mapstructure:"issuer"`

	// Audience, when set, must contain the aud claim.
	Audience []string `json:"audience" mapstructure:"audience"`

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration `json:"leeway" mapstructure:"leeway"`
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		SigningMethod: DefaultSigningMethod,
		Audience:      []string{},
		Leeway:        30 * time.Second,
	}
}

// AddFlags adds flags for JWT options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "jwt."
	fs.BoolVar(&o.Disabled, p+"disabled", o.Disabled,
		"Disable token verification and trust the X-User-ID header")
	fs.StringVar(&o.Key, p+"key", o.Key,
		"HMAC signing key, min 32 chars (prefer JWT_KEY env var)")
	fs.StringVar(&o.SigningMethod, p+"signing-method", o.SigningMethod,
		"JWT signing algorithm (HS256, HS384, HS512)")
	fs.StringVar(&o.Issuer, p+"issuer", o.Issuer,
		"Required token issuer (iss claim)")
	fs.StringSliceVar(&o.Audience, p+"audience", o.Audience,
		"Accepted token audience (aud claim)")
	fs.DurationVar(&o.Leeway, p+"leeway", o.Leeway,
		"Allowed clock skew when checking token times")
}

// Complete fills in default values for unset fields.
func (o *Options) Complete() error {
	if o.SigningMethod == "" {
		o.SigningMethod = DefaultSigningMethod
	}
	// 优先使用环境变量中的密钥
	if o.Key == "" {
		o.Key = os.Getenv("JWT_KEY")
	}
	return nil
}

// Validate validates the JWT options.
func (o *Options) Validate() error {
	if o.Disabled {
		return nil
	}
	if !SupportedSigningMethods[o.SigningMethod] {
		return fmt.Errorf("unsupported signing method: %s", o.SigningMethod)
	}
	if o.Key == "" {
		return fmt.Errorf("jwt key is required")
	}
	if len(o.Key) < MinKeyLength {
		return fmt.Errorf("jwt key must be at least %d characters for HMAC algorithms, got: %d",
			MinKeyLength, len(o.Key))
	}
	if len(o.Key) > MaxKeyLength {
		return fmt.Errorf("jwt key must be at most %d characters, got: %d",
			MaxKeyLength, len(o.Key))
	}
	if o.Leeway < 0 {
		return fmt.Errorf("leeway must not be negative, got: %v", o.Leeway)
	}
	return nil
}

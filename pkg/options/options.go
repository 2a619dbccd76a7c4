// Package options holds the pieces shared by every configuration section:
// flag prefixing and the Complete/Validate lifecycle.
package options

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
)

// IOptions is implemented by each configuration section. Flag names equal
// the section's mapstructure path, so file, env and flag values land on the
// same field.
type IOptions interface {
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
	Complete() error
	Validate() error
}

// Completer fills derived defaults after all sources are loaded.
type Completer interface{ Complete() error }

// Validator rejects unusable settings.
type Validator interface{ Validate() error }

// Join turns prefixes into a flag-name prefix: Join("cache") + "redis.host"
// yields "cache.redis.host". Empty prefixes are skipped.
func Join(prefixes ...string) string {
	var b strings.Builder
	for _, p := range prefixes {
		if p != "" {
			b.WriteString(p)
			b.WriteByte('.')
		}
	}
	return b.String()
}

// CompleteAll completes sections in order and stops at the first failure,
// since later sections may read values earlier ones derive.
func CompleteAll(sections ...Completer) error {
	for _, s := range sections {
		if err := s.Complete(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAll validates every section and reports all failures together.
func ValidateAll(sections ...Validator) error {
	var errs []error
	for _, s := range sections {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

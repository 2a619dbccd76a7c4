package app

import "github.com/spf13/pflag"

// CliOptions is implemented by the options struct handed to WithOptions.
// Fields are populated from the config file and environment through their
// mapstructure tags, then flags explicitly set on the command line win.
type CliOptions interface {
	// AddFlags registers the options' flags.
	AddFlags(fs *pflag.FlagSet)
	// Complete fills derived or defaulted fields.
	Complete() error
	// Validate reports invalid configuration.
	Validate() error
}

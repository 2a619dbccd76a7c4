package app

import "github.com/kart-io/version"

// GetVersion reports the build's git version, or "dev" when the binary was
// built without version ldflags.
func GetVersion() string {
	if v := version.Get().GitVersion; v != "" {
		return v
	}
	return "dev"
}

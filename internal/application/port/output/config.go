package output

import "time"

// ConfigPort reads process configuration. Unset or unparsable values fall back to the default.
type ConfigPort interface {
	GetWithDefault(key string, defaultValue string) string
	GetBool(key string, defaultValue bool) bool
	GetDuration(key string, defaultValue time.Duration) time.Duration
}

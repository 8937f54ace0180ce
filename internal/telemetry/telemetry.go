// Package telemetry provides no-op telemetry functions.
// A classroom tool transmits nothing about teachers or students without
// explicit opt-in, so every function here does nothing by default. A real
// implementation can be swapped in via configuration once consent exists.
package telemetry

// IsEnabled returns false always (telemetry disabled by default).
func IsEnabled() bool {
	return false
}

// TrackEvent tracks a usage event. No-op without opt-in.
func TrackEvent(name string, properties map[string]interface{}) {
}

// TrackError tracks an error occurrence. No-op without opt-in.
func TrackError(err error, context map[string]interface{}) {
}

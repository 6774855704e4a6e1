package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only the log level and the sample catalogue can be applied without a
// restart; every other changed section is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SamplesChanged is true when samples.dir or samples.catalog_file
	// changed. The catalogue is reloaded and swapped.
	SamplesChanged bool

	// RestartRequired names the sections whose changes take effect only
	// after a restart (e.g., "server", "providers").
	RestartRequired []string
}

// HasChanges reports whether d records any change at all.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.SamplesChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Samples != new.Samples {
		d.SamplesChanged = true
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"queue", old.Queue, new.Queue},
		{"models", old.Models, new.Models},
		{"providers", old.Providers, new.Providers},
		{"resilience", old.Resilience, new.Resilience},
		{"telemetry", old.Telemetry, new.Telemetry},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}

package config

import (
	"fmt"
	"net"
	"strconv"
)

// Environment variable names read by [ApplyEnv]. The VOXSTUDIO_ names win
// over the GRADIO_ names kept for drop-in compatibility.
const (
	EnvServerName = "VOXSTUDIO_SERVER_NAME"
	EnvServerPort = "VOXSTUDIO_SERVER_PORT"
	EnvRootPath   = "VOXSTUDIO_ROOT_PATH"

	EnvGradioServerName = "GRADIO_SERVER_NAME"
	EnvGradioServerPort = "GRADIO_SERVER_PORT"
	EnvGradioRootPath   = "GRADIO_ROOT_PATH"
)

// ApplyEnv overlays the bind host, port and root path from the environment.
// lookup is usually os.LookupEnv. An empty host or port variable counts as
// unset, so the next name in line still applies. An empty root path variable
// is applied, so GRADIO_ROOT_PATH="" clears a root path from the file.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	nonEmpty := func(k string) (string, bool) {
		v, ok := lookup(k)
		return v, ok && v != ""
	}
	if v, ok := firstEnv(nonEmpty, EnvServerName, EnvGradioServerName); ok {
		cfg.Server.Host = v
	}
	if v, name, ok := firstEnvNamed(nonEmpty, EnvServerPort, EnvGradioServerPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("config: %s=%q is not a valid port", name, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := firstEnv(lookup, EnvRootPath, EnvGradioRootPath); ok {
		cfg.Server.RootPath = NormalizeRootPath(v)
	}
	return nil
}

func firstEnv(lookup func(string) (string, bool), names ...string) (string, bool) {
	v, _, ok := firstEnvNamed(lookup, names...)
	return v, ok
}

func firstEnvNamed(lookup func(string) (string, bool), names ...string) (string, string, bool) {
	for _, n := range names {
		if v, ok := lookup(n); ok {
			return v, n, true
		}
	}
	return "", "", false
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

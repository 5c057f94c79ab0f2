// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order
// of priority. The first one found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pagi/config.yaml",
	"/etc/pagi/config.yml",
}

// ConfigPathEnvVar overrides the search in DefaultConfigPaths with an
// explicit path.
const ConfigPathEnvVar = "PAGI_CONFIG_PATH"

// defaultConfig returns every resource cap at the value spec.md §5's
// Size Budget table gives it.
func defaultConfig() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			Workers:              1,
			ListenAddr:           "0.0.0.0:8000",
			MaxRequestsPerWorker: 0,
			RespawnBackoffMin:    100 * time.Millisecond,
			RespawnBackoffMax:    10 * time.Second,
		},
		Listener: ListenerConfig{
			MaxConnections:   1024,
			AcceptBackoffMin: 5 * time.Millisecond,
			AcceptBackoffMax: 1 * time.Second,
		},
		Connection: ConnectionConfig{
			MaxBodyBytes:          10 << 20, // 10MB
			MaxReceiveQueue:       64,
			IdleTimeout:           15 * time.Second,
			SyncFileReadThreshold: 256 << 10, // 256KB
		},
		WebSocket: WebSocketConfig{
			MaxFrameBytes:   1 << 20,  // 1MB
			MaxMessageBytes: 16 << 20, // 16MB
		},
		SSE: SSEConfig{
			KeepAliveInterval: 15 * time.Second,
		},
		Lifespan: LifespanConfig{
			StartupTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Admin: AdminConfig{
			Addr: "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with koanf v2's layered sources:
//  1. Defaults: the struct above, loaded via the structs provider.
//  2. Config file: an optional YAML file, if one is found.
//  3. Environment variables: highest priority, via envTransformFunc.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("PAGI_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, checking ConfigPathEnvVar
// before falling back to DefaultConfigPaths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps PAGI_-prefixed environment variable names to
// koanf config paths, e.g. PAGI_SUPERVISOR_WORKERS -> supervisor.workers.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "PAGI_"))

	envMappings := map[string]string{
		"supervisor_workers":                 "supervisor.workers",
		"supervisor_listen_addr":             "supervisor.listen_addr",
		"supervisor_max_requests_per_worker": "supervisor.max_requests_per_worker",
		"supervisor_respawn_backoff_min":     "supervisor.respawn_backoff_min",
		"supervisor_respawn_backoff_max":     "supervisor.respawn_backoff_max",

		"listener_max_connections":    "listener.max_connections",
		"listener_accept_backoff_min": "listener.accept_backoff_min",
		"listener_accept_backoff_max": "listener.accept_backoff_max",

		"connection_max_body_bytes":            "connection.max_body_bytes",
		"connection_max_receive_queue":         "connection.max_receive_queue",
		"connection_idle_timeout":              "connection.idle_timeout",
		"connection_sync_file_read_threshold":  "connection.sync_file_read_threshold",

		"websocket_max_frame_bytes":   "websocket.max_frame_bytes",
		"websocket_max_message_bytes": "websocket.max_message_bytes",

		"sse_keep_alive_interval": "sse.keep_alive_interval",

		"lifespan_startup_timeout":  "lifespan.startup_timeout",
		"lifespan_shutdown_timeout": "lifespan.shutdown_timeout",

		"admin_addr": "admin.addr",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// GetKoanfInstance returns a fresh Koanf instance for callers that need
// direct access, such as a future hot-reload path.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile watches path for changes and invokes callback on every
// write, for hot-reload. The caller is responsible for synchronizing
// access to whatever Config it swaps in from the callback.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}

// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "time"

// Config is PAGI's full configuration surface, covering every resource
// cap spec.md §5 lists plus the ambient logging/admin layers. Every field
// carries a koanf struct tag so it round-trips through the layered
// defaults -> YAML file -> environment loading in koanf.go.
type Config struct {
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Listener   ListenerConfig   `koanf:"listener"`
	Connection ConnectionConfig `koanf:"connection"`
	WebSocket  WebSocketConfig  `koanf:"websocket"`
	SSE        SSEConfig        `koanf:"sse"`
	Lifespan   LifespanConfig   `koanf:"lifespan"`
	Admin      AdminConfig      `koanf:"admin"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// SupervisorConfig bounds the OS-process pre-fork pool (spec.md §4.1).
type SupervisorConfig struct {
	Workers              int           `koanf:"workers"`
	ListenAddr           string        `koanf:"listen_addr"`
	MaxRequestsPerWorker int64         `koanf:"max_requests_per_worker"`
	RespawnBackoffMin    time.Duration `koanf:"respawn_backoff_min"`
	RespawnBackoffMax    time.Duration `koanf:"respawn_backoff_max"`
}

// ListenerConfig bounds admission (spec.md §4.2).
type ListenerConfig struct {
	MaxConnections   int64         `koanf:"max_connections"`
	AcceptBackoffMin time.Duration `koanf:"accept_backoff_min"`
	AcceptBackoffMax time.Duration `koanf:"accept_backoff_max"`
}

// ConnectionConfig bounds the per-connection HTTP exchange (spec.md §4.3,
// §4.4).
type ConnectionConfig struct {
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	MaxReceiveQueue int           `koanf:"max_receive_queue"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	// SyncFileReadThreshold is loaded and validated only; no code passes
	// it on. internal/httpproto.SendFile takes its own threshold argument
	// (files at or under it are written in one Body call, larger files
	// are streamed chunk by chunk).
	SyncFileReadThreshold int64 `koanf:"sync_file_read_threshold"`
}

// WebSocketConfig bounds WebSocket connections (spec.md §4.5).
type WebSocketConfig struct {
	MaxFrameBytes   int64 `koanf:"max_frame_bytes"`
	MaxMessageBytes int64 `koanf:"max_message_bytes"`
}

// SSEConfig bounds SSE streams (spec.md §4.6).
type SSEConfig struct {
	KeepAliveInterval time.Duration `koanf:"keep_alive_interval"`
}

// LifespanConfig bounds the startup/shutdown dialogue (spec.md §4.7).
type LifespanConfig struct {
	StartupTimeout  time.Duration `koanf:"startup_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AdminConfig bounds the operator-facing surface (spec.md §6.3).
type AdminConfig struct {
	Addr string `koanf:"addr"`
}

// LoggingConfig bounds the internal/logging package.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "fmt"

// Validate checks that every section carries usable values, delegating to
// a private validator per section. Each returns early with a descriptive
// error on the first bad field, rather than collecting every error, since
// a misconfigured process should not start at all.
func (c *Config) Validate() error {
	if err := c.validateSupervisor(); err != nil {
		return err
	}
	if err := c.validateListener(); err != nil {
		return err
	}
	if err := c.validateConnection(); err != nil {
		return err
	}
	if err := c.validateWebSocket(); err != nil {
		return err
	}
	if err := c.validateSSE(); err != nil {
		return err
	}
	if err := c.validateLifespan(); err != nil {
		return err
	}
	if err := c.validateAdmin(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.Workers < 1 {
		return fmt.Errorf("config: supervisor.workers must be >= 1, got %d", c.Supervisor.Workers)
	}
	if c.Supervisor.ListenAddr == "" {
		return fmt.Errorf("config: supervisor.listen_addr must not be empty")
	}
	if c.Supervisor.MaxRequestsPerWorker < 0 {
		return fmt.Errorf("config: supervisor.max_requests_per_worker must be >= 0, got %d", c.Supervisor.MaxRequestsPerWorker)
	}
	if c.Supervisor.RespawnBackoffMin <= 0 {
		return fmt.Errorf("config: supervisor.respawn_backoff_min must be > 0")
	}
	if c.Supervisor.RespawnBackoffMax < c.Supervisor.RespawnBackoffMin {
		return fmt.Errorf("config: supervisor.respawn_backoff_max must be >= respawn_backoff_min")
	}
	return nil
}

func (c *Config) validateListener() error {
	if c.Listener.MaxConnections < 1 {
		return fmt.Errorf("config: listener.max_connections must be >= 1, got %d", c.Listener.MaxConnections)
	}
	if c.Listener.AcceptBackoffMin <= 0 {
		return fmt.Errorf("config: listener.accept_backoff_min must be > 0")
	}
	if c.Listener.AcceptBackoffMax < c.Listener.AcceptBackoffMin {
		return fmt.Errorf("config: listener.accept_backoff_max must be >= accept_backoff_min")
	}
	return nil
}

func (c *Config) validateConnection() error {
	if c.Connection.MaxBodyBytes < 1 {
		return fmt.Errorf("config: connection.max_body_bytes must be >= 1, got %d", c.Connection.MaxBodyBytes)
	}
	if c.Connection.MaxReceiveQueue < 1 {
		return fmt.Errorf("config: connection.max_receive_queue must be >= 1, got %d", c.Connection.MaxReceiveQueue)
	}
	if c.Connection.IdleTimeout <= 0 {
		return fmt.Errorf("config: connection.idle_timeout must be > 0")
	}
	if c.Connection.SyncFileReadThreshold < 0 {
		return fmt.Errorf("config: connection.sync_file_read_threshold must be >= 0, got %d", c.Connection.SyncFileReadThreshold)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if c.WebSocket.MaxFrameBytes < 1 {
		return fmt.Errorf("config: websocket.max_frame_bytes must be >= 1, got %d", c.WebSocket.MaxFrameBytes)
	}
	if c.WebSocket.MaxMessageBytes < c.WebSocket.MaxFrameBytes {
		return fmt.Errorf("config: websocket.max_message_bytes must be >= max_frame_bytes")
	}
	return nil
}

func (c *Config) validateSSE() error {
	if c.SSE.KeepAliveInterval < 0 {
		return fmt.Errorf("config: sse.keep_alive_interval must be >= 0")
	}
	return nil
}

func (c *Config) validateLifespan() error {
	if c.Lifespan.StartupTimeout <= 0 {
		return fmt.Errorf("config: lifespan.startup_timeout must be > 0")
	}
	if c.Lifespan.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: lifespan.shutdown_timeout must be > 0")
	}
	return nil
}

func (c *Config) validateAdmin() error {
	if c.Admin.Addr == "" {
		return fmt.Errorf("config: admin.addr must not be empty")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "":
	default:
		return fmt.Errorf("config: logging.level %q is not a recognized level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "":
	default:
		return fmt.Errorf("config: logging.format %q must be json or console", c.Logging.Format)
	}
	return nil
}

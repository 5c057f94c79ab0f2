// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"testing"
)

func TestLoadWithKoanfDefaults(t *testing.T) {
	os.Unsetenv(ConfigPathEnvVar)
	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Supervisor.Workers != 1 {
		t.Errorf("Supervisor.Workers = %d, want 1", cfg.Supervisor.Workers)
	}
	if cfg.Admin.Addr != "127.0.0.1:9090" {
		t.Errorf("Admin.Addr = %q, want 127.0.0.1:9090", cfg.Admin.Addr)
	}
}

func TestLoadWithKoanfEnvOverride(t *testing.T) {
	os.Unsetenv(ConfigPathEnvVar)
	t.Setenv("PAGI_SUPERVISOR_WORKERS", "4")
	t.Setenv("PAGI_LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Supervisor.Workers != 4 {
		t.Errorf("Supervisor.Workers = %d, want 4 (env override)", cfg.Supervisor.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (env override)", cfg.Logging.Level)
	}
}

func TestEnvTransformFuncUnmappedKeyIgnored(t *testing.T) {
	if got := envTransformFunc("PAGI_SOME_UNKNOWN_KEY"); got != "" {
		t.Errorf("envTransformFunc(unmapped) = %q, want empty string", got)
	}
}

func TestFindConfigFileHonorsEnvOverride(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "pagi-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Setenv(ConfigPathEnvVar, f.Name())

	if got := findConfigFile(); got != f.Name() {
		t.Errorf("findConfigFile() = %q, want %q", got, f.Name())
	}
}

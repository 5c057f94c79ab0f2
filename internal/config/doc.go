// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads PAGI's configuration through koanf v2, layering
// struct defaults, an optional YAML file, and environment variables, in
// that order of increasing precedence. See LoadWithKoanf.
package config

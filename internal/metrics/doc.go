// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics holds the process-wide Prometheus registry and
// collectors exposed at /admin/metrics.
package metrics

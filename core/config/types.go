// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"strings"
	"time"
)

// Hook kinds accepted under hook.kind.
const (
	HookMetrics = "metrics"
	HookCounter = "counter"
	HookLog     = "log"
	HookNone    = "none"
)

type TCPConfig struct {
	Enabled        bool
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
	ReusePort      bool
	ReadBufferSize int
}

type UDPConfig struct {
	Enabled        bool
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxConnections int
	ReusePort      bool
}

type MetricsConfig struct {
	Enabled bool
	Address string
	Runtime bool
	Labels  map[string]string

	// MaxConnections caps concurrent scrapes; zero means unlimited.
	MaxConnections int
}

type HookConfig struct {
	Kind      string
	LogPrefix string

	// ReportInterval is how often transfer totals are logged; zero disables.
	ReportInterval time.Duration
}

var defaults = map[string]any{
	"logger.level":             "info",
	"logger.format":            "text",
	"logger.log_dir":           "./logs",
	"logger.base_name":         "iohook",
	"logger.max_size_mb":       100,
	"logger.max_age_days":      7,
	"logger.max_backups":       3,
	"logger.compress":          false,
	"logger.enable_stdout":     true,
	"logger.enable_warn_file":  false,
	"logger.enable_error_file": true,
	"logger.async":             false,
	"logger.async_buffer":      4096,

	"tcp.enabled":          true,
	"tcp.address":          "127.0.0.1:7070",
	"tcp.read_timeout":     "60s",
	"tcp.write_timeout":    "5s",
	"tcp.max_connections":  1000,
	"tcp.reuse_port":       false,
	"tcp.read_buffer_size": 4096,

	"udp.enabled":         true,
	"udp.address":         "127.0.0.1:7071",
	"udp.read_timeout":    "1s",
	"udp.write_timeout":   "5s",
	"udp.max_connections": 1000,
	"udp.reuse_port":      false,

	"metrics.enabled": true,
	"metrics.address": "127.0.0.1:9090",
	"metrics.runtime": true,

	"metrics.max_connections": 16,

	"hook.kind":            HookMetrics,
	"hook.log_prefix":      "iohook",
	"hook.report_interval": "30s",
}

func validHookKind(kind string) bool {
	switch kind {
	case HookMetrics, HookCounter, HookLog, HookNone:
		return true
	}
	return false
}

func validLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	}
	return false
}

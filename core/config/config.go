// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cocowh/iohook/pkg/errors"
	"github.com/cocowh/iohook/pkg/logger"
)

// EnvPrefix is prepended to upper-cased keys with dots replaced by
// underscores, e.g. IOHOOK_TCP_ADDRESS.
const EnvPrefix = "IOHOOK"

// Manager owns the effective configuration: defaults, then the config
// file, then environment overrides.
type Manager struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// NewManager loads path. An empty path yields defaults plus environment.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Reload re-reads the config file. On failure the previous settings stay
// in effect.
func (m *Manager) Reload() error {
	v := newViper()

	if m.path != "" {
		switch ext := strings.ToLower(filepath.Ext(m.path)); ext {
		case ".yaml", ".yml", ".toml", ".json":
		default:
			return errors.ConfigErrorf(errors.ErrCodeConfigInvalid, "unsupported config format %q", ext).
				WithContext("config_path", m.path)
		}
		v.SetConfigFile(m.path)
		if err := v.ReadInConfig(); err != nil {
			code := errors.ErrCodeConfigParseError
			if os.IsNotExist(err) {
				code = errors.ErrCodeConfigNotFound
			}
			return errors.ConfigError(code, "failed to read config file").
				WithCause(err).
				WithContext("config_path", m.path)
		}
	}

	if kind := strings.ToLower(v.GetString("hook.kind")); !validHookKind(kind) {
		return errors.ConfigErrorf(errors.ErrCodeConfigInvalid, "unknown hook kind %q", kind)
	}
	if level := v.GetString("logger.level"); !validLevel(level) {
		return errors.ConfigErrorf(errors.ErrCodeConfigInvalid, "invalid logger level %q", level)
	}

	m.mu.Lock()
	m.v = v
	m.mu.Unlock()
	return nil
}

// Path returns the config file path, empty when running on defaults.
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) current() *viper.Viper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v
}

// Logger returns a logger.Config ready for logger.InitDefaultLogger.
func (m *Manager) Logger() *logger.Config {
	v := m.current()
	return &logger.Config{
		LogDir:           v.GetString("logger.log_dir"),
		BaseName:         v.GetString("logger.base_name"),
		Format:           v.GetString("logger.format"),
		Level:            logger.ParseLevel(v.GetString("logger.level")),
		Compress:         v.GetBool("logger.compress"),
		MaxSizeMB:        v.GetInt("logger.max_size_mb"),
		MaxBackups:       v.GetInt("logger.max_backups"),
		MaxAgeDays:       v.GetInt("logger.max_age_days"),
		EnableStdout:     v.GetBool("logger.enable_stdout"),
		EnableWarnFile:   v.GetBool("logger.enable_warn_file"),
		EnableErrorFile:  v.GetBool("logger.enable_error_file"),
		Async:            v.GetBool("logger.async"),
		AsyncChannelSize: v.GetInt("logger.async_buffer"),
	}
}

func (m *Manager) TCP() TCPConfig {
	v := m.current()
	return TCPConfig{
		Enabled:        v.GetBool("tcp.enabled"),
		Address:        v.GetString("tcp.address"),
		ReadTimeout:    v.GetDuration("tcp.read_timeout"),
		WriteTimeout:   v.GetDuration("tcp.write_timeout"),
		MaxConnections: v.GetInt("tcp.max_connections"),
		ReusePort:      v.GetBool("tcp.reuse_port"),
		ReadBufferSize: v.GetInt("tcp.read_buffer_size"),
	}
}

func (m *Manager) UDP() UDPConfig {
	v := m.current()
	return UDPConfig{
		Enabled:        v.GetBool("udp.enabled"),
		Address:        v.GetString("udp.address"),
		ReadTimeout:    v.GetDuration("udp.read_timeout"),
		WriteTimeout:   v.GetDuration("udp.write_timeout"),
		MaxConnections: v.GetInt("udp.max_connections"),
		ReusePort:      v.GetBool("udp.reuse_port"),
	}
}

func (m *Manager) Metrics() MetricsConfig {
	v := m.current()
	return MetricsConfig{
		Enabled:        v.GetBool("metrics.enabled"),
		Address:        v.GetString("metrics.address"),
		Runtime:        v.GetBool("metrics.runtime"),
		Labels:         v.GetStringMapString("metrics.labels"),
		MaxConnections: v.GetInt("metrics.max_connections"),
	}
}

func (m *Manager) Hook() HookConfig {
	v := m.current()
	return HookConfig{
		Kind:           strings.ToLower(v.GetString("hook.kind")),
		LogPrefix:      v.GetString("hook.log_prefix"),
		ReportInterval: v.GetDuration("hook.report_interval"),
	}
}

// Settings returns every key, env overrides applied, as a nested map.
func (m *Manager) Settings() map[string]any {
	v := m.current()
	out := make(map[string]any)
	for _, key := range v.AllKeys() {
		setNested(out, strings.Split(key, "."), v.Get(key))
	}
	return out
}

func setNested(m map[string]any, path []string, val any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = val
}

// Dump renders the effective configuration as YAML.
func (m *Manager) Dump() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.Settings()); err != nil {
		return nil, errors.ConfigError(errors.ErrCodeConfigUnknown, "encode yaml").WithCause(err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.ConfigError(errors.ErrCodeConfigUnknown, "encode yaml").WithCause(err)
	}
	return buf.Bytes(), nil
}

// DumpTOML renders the effective configuration as TOML.
func (m *Manager) DumpTOML() ([]byte, error) {
	b, err := toml.Marshal(m.Settings())
	if err != nil {
		return nil, errors.ConfigError(errors.ErrCodeConfigUnknown, "encode toml").WithCause(err)
	}
	return b, nil
}

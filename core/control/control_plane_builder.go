// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cocowh/iohook/core/config"
	"github.com/cocowh/iohook/core/iface"
	"github.com/cocowh/iohook/core/iohook"
	"github.com/cocowh/iohook/core/observability"
	"github.com/cocowh/iohook/core/tcp"
	"github.com/cocowh/iohook/core/udp"
	"github.com/cocowh/iohook/pkg/logger"
)

// ControlPlaneBuilder assembles a Plane from a config file.
type ControlPlaneBuilder struct {
	configManager *config.Manager
	handler       iface.EventHandler
	watch         bool
}

// NewControlPlaneBuilder loads configPath without touching the logger.
func NewControlPlaneBuilder(configPath string) (*ControlPlaneBuilder, error) {
	configManager, err := config.NewManager(configPath)
	if err != nil {
		return nil, err
	}
	return &ControlPlaneBuilder{
		configManager: configManager,
		handler:       iface.Echo,
	}, nil
}

// NewControlPlaneBuilderWithLogConfig loads configPath and installs the
// configured logger. A non-empty logLevel overrides the file; verbose forces
// debug.
func NewControlPlaneBuilderWithLogConfig(configPath, logLevel string, verbose bool) (*ControlPlaneBuilder, error) {
	b, err := NewControlPlaneBuilder(configPath)
	if err != nil {
		return nil, err
	}
	if err := initializeLoggerWithOverrides(b.configManager, logLevel, verbose); err != nil {
		return nil, err
	}
	return b, nil
}

func initializeLoggerWithOverrides(configManager *config.Manager, logLevel string, verbose bool) error {
	cfg := configManager.Logger()
	if logLevel != "" {
		cfg.Level = logger.ParseLevel(logLevel)
	}
	if verbose {
		cfg.Level = logger.DebugLevel
	}
	return logger.InitDefaultLogger(cfg)
}

// WithHandler replaces the default echo handler on both servers.
func (b *ControlPlaneBuilder) WithHandler(h iface.EventHandler) *ControlPlaneBuilder {
	b.handler = h
	return b
}

// WithWatch reloads the config file on change and re-registers the hook.
func (b *ControlPlaneBuilder) WithWatch(watch bool) *ControlPlaneBuilder {
	b.watch = watch
	return b
}

func (b *ControlPlaneBuilder) ConfigManager() *config.Manager {
	return b.configManager
}

func (b *ControlPlaneBuilder) Build() (*Plane, error) {
	cp := &Plane{
		configManager: b.configManager,
		counter:       iohook.NewCounter(),
		state:         StateCreated,
	}

	if mc := b.configManager.Metrics(); mc.Enabled {
		opts := []observability.MetricsOption{
			observability.WithFaults(iohook.Faults),
			observability.WithConstLabels(prometheus.Labels(mc.Labels)),
		}
		if mc.Runtime {
			opts = append(opts, observability.WithRuntimeMetrics())
		}
		cp.metrics = observability.NewMetricsHook(opts...)
	}

	if tc := b.configManager.TCP(); tc.Enabled {
		cp.tcpServer = tcp.NewServer("tcp", tc.Address, &tcp.ServerOptions{
			ReadTimeout:    tc.ReadTimeout,
			WriteTimeout:   tc.WriteTimeout,
			MaxConnections: tc.MaxConnections,
			ReusePort:      tc.ReusePort,
			ReadBufferSize: tc.ReadBufferSize,
		})
		cp.tcpServer.SetEventHandler(b.handler)
	}

	if uc := b.configManager.UDP(); uc.Enabled {
		cp.udpServer = udp.NewServer("udp", uc.Address, &udp.ServerOptions{
			ReadTimeout:    uc.ReadTimeout,
			WriteTimeout:   uc.WriteTimeout,
			MaxConnections: uc.MaxConnections,
			ReusePort:      uc.ReusePort,
		})
		cp.udpServer.SetEventHandler(b.handler)
	}

	if b.watch && b.configManager.Path() != "" {
		cp.watcher = config.NewWatcher(b.configManager, config.DefaultDebounce)
	}

	logger.Debugf("Control plane built: tcp=%t udp=%t metrics=%t watch=%t",
		cp.tcpServer != nil, cp.udpServer != nil, cp.metrics != nil, cp.watcher != nil)
	return cp, nil
}

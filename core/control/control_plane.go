// Copyright (c) 2025 cocowh. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package control

import (
	"context"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/net/netutil"

	"github.com/cocowh/iohook/core/config"
	"github.com/cocowh/iohook/core/iohook"
	"github.com/cocowh/iohook/core/observability"
	"github.com/cocowh/iohook/core/tcp"
	"github.com/cocowh/iohook/core/udp"
	"github.com/cocowh/iohook/core/utils"
	"github.com/cocowh/iohook/pkg/errors"
	"github.com/cocowh/iohook/pkg/logger"
)

const (
	StateCreated  = "created"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateStopped  = "stopped"
)

// Plane runs the echo servers and the metrics endpoint with the configured
// hook registered process-wide.
type Plane struct {
	configManager *config.Manager
	metrics       *observability.MetricsHook
	counter       *iohook.Counter
	tcpServer     *tcp.Server
	udpServer     *udp.Server
	watcher       *config.Watcher

	metricsAddr net.Addr

	hookMu   sync.Mutex
	hookKind string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	state  string
}

func (cp *Plane) Start() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.state != StateCreated {
		return errors.SystemErrorf(errors.ErrCodeSystemInternalError, "control plane is %s", cp.state)
	}

	cp.ctx, cp.cancel = context.WithCancel(context.Background())
	logger.Infof("Starting control plane...")

	hc := cp.configManager.Hook()
	cp.ApplyHook(hc)

	if err := cp.startComponents(); err != nil {
		cp.cancel()
		cp.stopComponents()
		cp.wg.Wait()
		cp.ApplyHook(config.HookConfig{Kind: config.HookNone})
		cp.state = StateStopped
		return err
	}

	cp.wg.Add(1)
	go cp.monitorLoop(hc.ReportInterval)

	cp.state = StateRunning
	logger.Infof("Control plane started successfully")
	return nil
}

func (cp *Plane) startComponents() error {
	if cp.tcpServer != nil {
		if err := cp.tcpServer.Start(); err != nil {
			return err
		}
	}
	if cp.udpServer != nil {
		if err := cp.udpServer.Start(); err != nil {
			return err
		}
	}

	if cp.metrics != nil {
		mc := cp.configManager.Metrics()
		ln, err := net.Listen("tcp", mc.Address)
		if err != nil {
			return errors.Convert(err).WithContext("component", "metrics")
		}
		if mc.MaxConnections > 0 {
			ln = netutil.LimitListener(ln, mc.MaxConnections)
		}
		cp.metricsAddr = ln.Addr()
		cp.wg.Add(1)
		go func() {
			defer cp.wg.Done()
			defer utils.PanicHandler(func() {
				logger.Errorf("Metrics server panic, stack: %s", string(debug.Stack()))
			})
			cp.metrics.ServeListener(cp.ctx, ln)
		}()
	}

	if cp.watcher != nil {
		cp.watcher.OnChange(cp.onConfigChange)
		if err := cp.watcher.Start(cp.ctx); err != nil {
			return err
		}
	}
	return nil
}

func (cp *Plane) stopComponents() error {
	var err error
	if cp.watcher != nil {
		cp.watcher.Stop()
	}
	if cp.tcpServer != nil {
		err = multierr.Append(err, cp.tcpServer.Stop())
	}
	if cp.udpServer != nil {
		err = multierr.Append(err, cp.udpServer.Stop())
	}
	return err
}

// Stop shuts every component down and unregisters the hook.
func (cp *Plane) Stop() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.state != StateRunning {
		return errors.SystemErrorf(errors.ErrCodeSystemShutdown, "control plane is %s", cp.state)
	}

	cp.state = StateStopping
	logger.Infof("Stopping control plane...")

	cp.cancel()
	err := cp.stopComponents()
	cp.wg.Wait()

	cp.ApplyHook(config.HookConfig{Kind: config.HookNone})

	cp.state = StateStopped
	if err != nil {
		logger.Errorf("Control plane stopped with errors: %v", err)
		return err
	}
	logger.Infof("Control plane stopped successfully")
	return nil
}

func (cp *Plane) GetState() string {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.state
}

// ApplyHook registers the hook named by hc, replacing the current one.
func (cp *Plane) ApplyHook(hc config.HookConfig) {
	cp.hookMu.Lock()
	defer cp.hookMu.Unlock()

	kind := hc.Kind
	var h iohook.Hook
	switch kind {
	case config.HookMetrics:
		if cp.metrics != nil {
			h = cp.metrics
			break
		}
		logger.Warnf("Hook kind %q needs metrics enabled, using %q", kind, config.HookCounter)
		kind = config.HookCounter
		h = cp.counter
	case config.HookCounter:
		h = cp.counter
	case config.HookLog:
		h = iohook.LogHook{Prefix: hc.LogPrefix}
	default:
		kind = config.HookNone
	}

	iohook.Init(h)
	if kind != cp.hookKind {
		logger.Infof("Registered I/O hook: %s", kind)
	}
	cp.hookKind = kind
}

// HookKind names the hook currently registered by the plane.
func (cp *Plane) HookKind() string {
	cp.hookMu.Lock()
	defer cp.hookMu.Unlock()
	return cp.hookKind
}

func (cp *Plane) onConfigChange(m *config.Manager) {
	logger.SetLevel(m.Logger().Level)

	cp.mu.RLock()
	defer cp.mu.RUnlock()
	if cp.state != StateRunning {
		return
	}
	cp.ApplyHook(m.Hook())
}

func (cp *Plane) TCPAddr() net.Addr {
	if cp.tcpServer == nil {
		return nil
	}
	return cp.tcpServer.Addr()
}

func (cp *Plane) UDPAddr() net.Addr {
	if cp.udpServer == nil {
		return nil
	}
	return cp.udpServer.Addr()
}

func (cp *Plane) MetricsAddr() net.Addr {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.metricsAddr
}

func (cp *Plane) Metrics() *observability.MetricsHook {
	return cp.metrics
}

func (cp *Plane) Counter() *iohook.Counter {
	return cp.counter
}

func (cp *Plane) monitorLoop(interval time.Duration) {
	defer cp.wg.Done()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-cp.ctx.Done():
			return
		case <-ticker.C:
			cp.report()
		}
	}
}

func (cp *Plane) report() {
	var conns int
	if cp.tcpServer != nil {
		conns += cp.tcpServer.ConnectionCount()
	}
	if cp.udpServer != nil {
		conns += cp.udpServer.ConnectionCount()
	}
	kind := cp.HookKind()
	if kind == config.HookCounter {
		logger.Infof("I/O totals: %s, faults=%d, connections=%d", cp.counter.Snapshot(), iohook.Faults(), conns)
		return
	}
	logger.Infof("I/O hook=%s, faults=%d, connections=%d", kind, iohook.Faults(), conns)
}

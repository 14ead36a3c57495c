// Package health tracks the operating state of each remote service
// (ASR/LLM/TTS backends) as a three-strike breaker — HEALTHY, DEGRADED,
// FAILED — rather than the open/closed/half-open model. Grounded on
// MrWong99-glyphoxa's internal/resilience/circuitbreaker.go for the
// mutex-guarded state-machine shape (Execute wraps a call, Reset forces
// recovery), adapted from its three named states to the three-strike
// model SPEC_FULL §4.6 calls for: every consecutive failure advances one
// strike, any success clears all strikes immediately.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/lokutor-ai/voxpipe/internal/logging"
	"github.com/lokutor-ai/voxpipe/internal/metrics"
)

// State is a service's current health classification.
type State int

const (
	Healthy State = iota
	Degraded
	Failed
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Prober checks one remote service and reports whether it's reachable.
type Prober func(ctx context.Context) error

type serviceState struct {
	mu      sync.Mutex
	state   State
	strikes int
	prober  Prober
}

// Monitor periodically probes a set of named services and exposes each
// one's current State. RecordResult lets the coordinator report live
// request outcomes too, so a breaker trips from real traffic failures
// without waiting for the next scheduled probe.
type Monitor struct {
	log      logging.Logger
	interval time.Duration
	timeout  time.Duration

	mu       sync.RWMutex
	services map[string]*serviceState

	stop chan struct{}
}

func NewMonitor(log logging.Logger, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		log:      log,
		interval: interval,
		timeout:  timeout,
		services: make(map[string]*serviceState),
		stop:     make(chan struct{}),
	}
}

// Register adds a service to be probed on the monitor's interval. prober
// may be nil for services that are only ever updated via RecordResult.
func (m *Monitor) Register(name string, prober Prober) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[name] = &serviceState{prober: prober}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
}

// RecordResult reports the outcome of a live call to name, advancing or
// clearing its strike count the same way a scheduled probe would.
func (m *Monitor) RecordResult(name string, err error) {
	m.mu.RLock()
	svc, ok := m.services[name]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.apply(name, svc, err)
}

func (m *Monitor) apply(name string, svc *serviceState, err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err == nil {
		if svc.state != Healthy {
			m.log.Info("service recovered", "service", name)
		}
		svc.state = Healthy
		svc.strikes = 0
		metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
		return
	}

	svc.strikes++
	switch {
	case svc.strikes >= 3:
		svc.state = Failed
	case svc.strikes == 2:
		svc.state = Degraded
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(svc.state))
	m.log.Warn("service health check failed", "service", name, "strikes", svc.strikes, "state", svc.state.String(), "err", err)
}

// State returns the current classification for name, or Healthy if name
// was never registered.
func (m *Monitor) State(name string) State {
	m.mu.RLock()
	svc, ok := m.services[name]
	m.mu.RUnlock()
	if !ok {
		return Healthy
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.state
}

// Reset forces name back to Healthy, for the admin reset endpoint
// (SPEC_FULL §6 POST /health/reset/:service).
func (m *Monitor) Reset(name string) bool {
	m.mu.RLock()
	svc, ok := m.services[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	svc.mu.Lock()
	svc.state = Healthy
	svc.strikes = 0
	svc.mu.Unlock()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	m.log.Info("service health manually reset", "service", name)
	return true
}

// Snapshot returns every registered service's current state, for the
// health HTTP handler.
func (m *Monitor) Snapshot() map[string]State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]State, len(m.services))
	for name, svc := range m.services {
		svc.mu.Lock()
		out[name] = svc.state
		svc.mu.Unlock()
	}
	return out
}

// Run starts the periodic probe loop, blocking until ctx is cancelled or
// Stop is called.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	m.mu.RLock()
	services := make(map[string]*serviceState, len(m.services))
	for name, svc := range m.services {
		services[name] = svc
	}
	m.mu.RUnlock()

	for name, svc := range services {
		if svc.prober == nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := svc.prober(probeCtx)
		cancel()
		m.apply(name, svc, err)
	}
}

// Stop halts the probe loop started by Run.
func (m *Monitor) Stop() {
	close(m.stop)
}

package database

import (
	"context"
	"sync"
	"time"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
)

// ReadinessState tracks whether the persistence backend is usable. It is
// process-wide and owned by the ReadinessGate; everything that touches
// persistence consults it first.
type ReadinessState int

const (
	Disconnected ReadinessState = iota
	Connecting
	Ready
	Degraded
)

func (s ReadinessState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	}
	return "unknown"
}

type ProbeFunc func(ctx context.Context) error

// ReadinessGate is the only writer of the readiness state. Driver heartbeat
// observations and its own background poller move the state; AwaitReady is
// the blocking "become ready or fail" operation every event handler runs.
type ReadinessGate struct {
	mu         sync.Mutex
	state      ReadinessState
	probe      ProbeFunc
	timeout    time.Duration
	pollerStop chan struct{}
}

var gateInstance *ReadinessGate
var gateOnce sync.Once

func Gate() *ReadinessGate {
	gateOnce.Do(func() {
		gateInstance = NewReadinessGate(livenessProbe, 0)
	})
	return gateInstance
}

// NewReadinessGate builds a gate around the given probe. A zero timeout means
// the gate uses the configured operation timeout at probe time.
func NewReadinessGate(probe ProbeFunc, timeout time.Duration) *ReadinessGate {
	return &ReadinessGate{
		state:   Disconnected,
		probe:   probe,
		timeout: timeout,
	}
}

func (g *ReadinessGate) State() ReadinessState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *ReadinessGate) setState(state ReadinessState) {
	g.mu.Lock()
	previous := g.state
	g.state = state
	g.mu.Unlock()
	if previous != state {
		logger.InfoF("Readiness state changed: %s -> %s", previous, state)
	}
}

// observeHeartbeat folds a driver heartbeat result into the state. A failed
// heartbeat degrades a ready gate without any caller action.
func (g *ReadinessGate) observeHeartbeat(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case err != nil && g.state == Ready:
		g.state = Degraded
		logger.WarnF("Readiness state changed: %s -> %s", Ready, Degraded)
	case err == nil && (g.state == Degraded || g.state == Connecting):
		previous := g.state
		g.state = Ready
		logger.InfoF("Readiness state changed: %s -> %s", previous, Ready)
	}
}

func (g *ReadinessGate) probeTimeout() time.Duration {
	if g.timeout > 0 {
		return g.timeout
	}
	if OperationTimeout > 0 {
		return OperationTimeout
	}
	return 5 * time.Second
}

func (g *ReadinessGate) runProbe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, g.probeTimeout())
	defer cancel()
	return g.probe(probeCtx)
}

// AwaitReady blocks until the backend is verified usable or the retry budget
// runs out, whichever comes first. The state flag alone is not trusted: a
// ready flag can be stale relative to actual connectivity, so each ready
// observation is confirmed with a liveness probe. A failing probe is a
// transient miss, not a hard failure.
func (g *ReadinessGate) AwaitReady(ctx context.Context, maxAttempts int, interval time.Duration) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if g.State() == Ready {
			if err := g.runProbe(ctx); err == nil {
				return nil
			} else {
				logger.WarnF("Liveness probe failed on attempt %d/%d: %v", attempt, maxAttempts, err)
			}
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return ErrNotReady
}

// startPoller re-evaluates the state on a fixed interval, independently of
// per-event processing.
func (g *ReadinessGate) startPoller(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	g.mu.Lock()
	if g.pollerStop != nil {
		g.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	g.pollerStop = stop
	g.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				err := g.runProbe(context.Background())
				g.observeHeartbeat(err)
			}
		}
	}()
}

func (g *ReadinessGate) pause() {
	g.mu.Lock()
	stop := g.pollerStop
	g.pollerStop = nil
	g.state = Disconnected
	g.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

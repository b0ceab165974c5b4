// Package connectivity tracks whether the network is usable for sync.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Capabilities describes what the current network offers. Only a network
// that both reaches the internet and has been validated counts as connected.
type Capabilities struct {
	Internet  bool
	Validated bool
}

// Connected reports whether c is usable.
func (c Capabilities) Connected() bool {
	return c.Internet && c.Validated
}

// Prober derives the current capabilities.
type Prober interface {
	Probe(ctx context.Context) (Capabilities, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (Capabilities, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) (Capabilities, error) {
	return f(ctx)
}

// Gate holds the current connectivity and fans changes out to subscribers.
type Gate struct {
	prober    Prober
	logger    *slog.Logger
	connected atomic.Bool
	probes    singleflight.Group

	mu          sync.Mutex
	subscribers map[int]chan bool
	nextID      int
}

// NewGate constructs a Gate that starts disconnected until the first probe.
func NewGate(prober Prober, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{
		prober:      prober,
		logger:      logger.With("component", "connectivity"),
		subscribers: make(map[int]chan bool),
	}
}

// Current returns the last known connectivity without probing.
func (g *Gate) Current() bool {
	return g.connected.Load()
}

// Connected probes the network and returns the fresh result.
func (g *Gate) Connected(ctx context.Context) bool {
	return g.CheckCurrentConnectivity(ctx)
}

// CheckCurrentConnectivity probes the network. Concurrent callers share a
// single probe. A failing probe counts as disconnected.
func (g *Gate) CheckCurrentConnectivity(ctx context.Context) bool {
	value, _, _ := g.probes.Do("probe", func() (any, error) {
		caps, err := g.prober.Probe(ctx)
		if err != nil {
			g.logger.DebugContext(ctx, "connectivity probe failed", slog.Any("error", err))
			return false, nil
		}
		return caps.Connected(), nil
	})
	connected, _ := value.(bool)
	g.set(connected)
	return connected
}

// OnCapabilitiesChanged applies a platform capability update as authoritative.
func (g *Gate) OnCapabilitiesChanged(caps Capabilities) {
	g.set(caps.Connected())
}

// OnLost handles a network-lost notification. Another network may already
// be carrying traffic, so the state is re-derived instead of assumed offline.
func (g *Gate) OnLost(ctx context.Context) bool {
	return g.CheckCurrentConnectivity(ctx)
}

// Subscribe returns a channel receiving every connectivity change, starting
// with the current value. cancel closes the channel.
func (g *Gate) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	g.mu.Lock()
	ch <- g.connected.Load()
	id := g.nextID
	g.nextID++
	g.subscribers[id] = ch
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.subscribers, id)
			close(ch)
		})
	}
}

// Watch probes every interval until ctx ends.
func (g *Gate) Watch(ctx context.Context, interval time.Duration) {
	g.CheckCurrentConnectivity(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.CheckCurrentConnectivity(ctx)
		}
	}
}

// set records connected and fans it out. The swap and the sends share g.mu
// so subscribers observe changes in the order they were applied.
func (g *Gate) set(connected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.connected.Swap(connected) == connected {
		return
	}
	g.logger.Info("connectivity changed", slog.Bool("connected", connected))
	for _, ch := range g.subscribers {
		// Subscribers only need the latest value.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- connected:
		default:
		}
	}
}

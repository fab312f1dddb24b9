package netsim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/haperr"
	"github.com/hapkit/hap-go/pkg/log"
)

// DefaultSeed is the packet loss seed used when none is configured.
const DefaultSeed uint64 = 1

// Conditions describes the simulated network.
type Conditions struct {
	// Latency delays every delivered operation.
	Latency time.Duration

	// PacketLoss is the probability in [0, 1] that an operation is dropped.
	PacketLoss float64

	// Disconnected fails every operation.
	Disconnected bool
}

// Stats counts gate outcomes since creation or the last Reset.
type Stats struct {
	Attempted uint64
	Rejected  uint64 // disconnected
	Dropped   uint64 // packet loss
	Delivered uint64
}

// Gate runs operations under simulated network conditions.
type Gate interface {
	Apply(ctx context.Context, op func(context.Context) error) error
}

// Simulator injects network faults into operations.
type Simulator struct {
	mu sync.Mutex

	cond   Conditions
	stats  Stats
	seed   uint64
	rng    *rand.Rand
	clock  clock.Clock
	logger log.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock sets the clock used for latency.
func WithClock(c clock.Clock) Option {
	return func(s *Simulator) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSeed sets the packet loss seed.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.seed = seed
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Simulator) {
		s.logger = log.OrNop(l)
	}
}

// WithConditions sets the initial conditions. Invalid values are clamped.
func WithConditions(c Conditions) Option {
	return func(s *Simulator) {
		if c.Latency < 0 {
			c.Latency = 0
		}
		c.PacketLoss = min(max(c.PacketLoss, 0), 1)
		s.cond = c
	}
}

// New creates a simulator with a perfect connection.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		seed:   DefaultSeed,
		clock:  clock.Real(),
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = newRand(s.seed)
	return s
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Conditions returns the current conditions.
func (s *Simulator) Conditions() Conditions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cond
}

// Stats returns the gate counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// SetLatency sets the delay applied to delivered operations.
func (s *Simulator) SetLatency(d time.Duration) error {
	if d < 0 {
		return haperr.Validation("set", "latency", d, "latency must be >= 0")
	}

	s.mu.Lock()
	s.cond.Latency = d
	s.mu.Unlock()

	s.logger.Debug("network latency changed", "latency", d)
	return nil
}

// SetPacketLoss sets the drop probability.
func (s *Simulator) SetPacketLoss(p float64) error {
	if p < 0 || p > 1 || math.IsNaN(p) {
		return haperr.Validation("set", "packetLoss", p, fmt.Sprintf("packet loss %v outside [0, 1]", p))
	}

	s.mu.Lock()
	s.cond.PacketLoss = p
	s.mu.Unlock()

	s.logger.Debug("network packet loss changed", "packetLoss", p)
	return nil
}

// Disconnect fails all subsequent operations until Reconnect.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	s.cond.Disconnected = true
	s.mu.Unlock()

	s.logger.Info("network disconnected")
}

// Reconnect clears the disconnected state.
func (s *Simulator) Reconnect() {
	s.mu.Lock()
	s.cond.Disconnected = false
	s.mu.Unlock()

	s.logger.Info("network reconnected")
}

// IsDisconnected reports whether the network is down.
func (s *Simulator) IsDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cond.Disconnected
}

// Reset restores default conditions, clears the counters, and reseeds the
// packet loss source.
func (s *Simulator) Reset() {
	s.mu.Lock()
	s.cond = Conditions{}
	s.stats = Stats{}
	s.rng = newRand(s.seed)
	s.mu.Unlock()

	s.logger.Debug("network conditions reset")
}

// Apply runs op under the current conditions.
func (s *Simulator) Apply(ctx context.Context, op func(context.Context) error) error {
	s.mu.Lock()
	s.stats.Attempted++
	cond := s.cond

	if cond.Disconnected {
		s.stats.Rejected++
		s.mu.Unlock()
		s.logger.Debug("operation rejected", "reason", haperr.ReasonDisconnected)
		return haperr.Network("apply", haperr.ReasonDisconnected)
	}

	if s.rng.Float64() < cond.PacketLoss {
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Debug("operation dropped", "reason", haperr.ReasonPacketLoss)
		return haperr.Network("apply", haperr.ReasonPacketLoss)
	}
	clk := s.clock
	s.mu.Unlock()

	if cond.Latency > 0 {
		if err := clk.Sleep(ctx, cond.Latency); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.stats.Delivered++
	s.mu.Unlock()

	return op(ctx)
}

// Do runs op through g and returns its result. A nil gate runs op directly.
func Do[T any](ctx context.Context, g Gate, op func(context.Context) (T, error)) (T, error) {
	if g == nil {
		return op(ctx)
	}

	var out T
	err := g.Apply(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		out = v
		return err
	})
	return out, err
}

// Compile-time interface satisfaction check.
var _ Gate = (*Simulator)(nil)

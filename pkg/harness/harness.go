// Package harness runs a platform under test against a simulated HomeKit
// environment.
//
// A Harness wires together a mock controller (package homekit), a clock
// (virtual unless Config.RealTime is set), and a network simulator that
// gates every consumer read and write. The platform publishes accessories
// through the API handed to DidFinishLaunching; tests then drive time with
// Advance and inspect the graph with the query methods, which never touch
// the network gate or permission checks.
//
// WaitForRegistration blocks until a registration or until the clock
// passes its timeout, so on virtual time another goroutine has to call
// Advance. RunUntilRegistered advances the clock itself.
//
//	h := harness.New(myPlatform, harness.Config{})
//	if err := h.Launch(ctx); err != nil { ... }
//	if err := h.RunUntilRegistered(ctx, 2*time.Second); err != nil { ... }
//	v, _ := h.CharacteristicValue(uuid, "Lightbulb", "On")
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/hapkit/hap-go/pkg/cache"
	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
	"github.com/hapkit/hap-go/pkg/homekit"
	"github.com/hapkit/hap-go/pkg/log"
	"github.com/hapkit/hap-go/pkg/netsim"
)

// Platform is the plugin platform under test.
type Platform interface {
	// DidFinishLaunching is called once by Launch. The platform registers
	// its accessories through api, now or later from clock timers.
	DidFinishLaunching(ctx context.Context, api *API) error
}

// AccessoryConfigurer is implemented by platforms that want the cached
// accessories handed back before launch.
type AccessoryConfigurer interface {
	ConfigureAccessory(acc *hap.Accessory)
}

// Shutdowner is implemented by platforms that release resources on
// shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Harness is the test facade.
type Harness struct {
	cfg      Config
	platform Platform
	logger   log.Logger

	clock   clock.Clock
	virtual *clock.Virtual
	network *netsim.Simulator
	homekit *homekit.Controller
	api     *API

	mu               sync.Mutex
	launched         bool
	shutdown         bool
	registrations    []Registration
	cached           []*hap.Accessory
	registered       chan struct{}
	registeredClosed bool
}

// New creates a harness for platform. Nothing runs until Launch.
func New(platform Platform, cfg Config) *Harness {
	cfg = cfg.withDefaults()

	h := &Harness{
		cfg:        cfg,
		platform:   platform,
		logger:     cfg.Logger,
		registered: make(chan struct{}),
	}

	if cfg.RealTime {
		h.clock = clock.Real()
	} else {
		h.virtual = clock.NewVirtual(cfg.StartTime)
		h.clock = h.virtual
	}

	h.network = netsim.New(
		netsim.WithClock(h.clock),
		netsim.WithSeed(cfg.Seed),
		netsim.WithLogger(h.logger),
	)
	h.homekit = homekit.New(
		homekit.WithControllerID(cfg.ControllerID),
		homekit.WithName(cfg.BridgeName),
		homekit.WithClock(h.clock),
		homekit.WithGate(h.network),
		homekit.WithLogger(h.logger),
	)
	h.api = &API{h: h}
	return h
}

// Launch restores cached accessories and calls DidFinishLaunching. It may
// only be called once.
func (h *Harness) Launch(ctx context.Context) error {
	h.mu.Lock()
	if h.launched {
		h.mu.Unlock()
		return haperr.New(haperr.KindDuplicate, "launch", h.cfg.PlatformName, "already launched")
	}
	h.launched = true
	h.mu.Unlock()

	if h.cfg.CachePath != "" {
		if err := h.restoreCache(); err != nil {
			return err
		}
	}

	if h.cfg.Hooks.OnLaunch != nil {
		h.cfg.Hooks.OnLaunch()
	}

	h.logger.Info("launching platform", "plugin", h.cfg.PluginName, "platform", h.cfg.PlatformName)
	if err := h.platform.DidFinishLaunching(ctx, h.api); err != nil {
		return fmt.Errorf("didFinishLaunching: %w", err)
	}
	return nil
}

func (h *Harness) restoreCache() error {
	accs, err := cache.Load(h.cfg.CachePath)
	if err != nil {
		return fmt.Errorf("load accessory cache: %w", err)
	}

	configurer, _ := h.platform.(AccessoryConfigurer)
	for _, acc := range accs {
		if err := h.homekit.AddAccessory(acc); err != nil {
			return fmt.Errorf("restore cached accessory: %w", err)
		}
		if configurer != nil {
			configurer.ConfigureAccessory(acc)
		}
	}

	h.mu.Lock()
	h.cached = accs
	h.mu.Unlock()

	h.logger.Debug("accessory cache restored", "path", h.cfg.CachePath, "count", len(accs))
	return nil
}

// WaitForRegistration waits until the platform has registered at least
// one accessory, or fails with haperr.ErrTimeout after timeout. A zero
// timeout uses Config.RegistrationTimeout.
//
// The timeout runs on the harness clock. On virtual time it only expires
// when the test advances the clock; the wait itself never moves time.
// Use RunUntilRegistered to let the harness drive the clock instead.
func (h *Harness) WaitForRegistration(ctx context.Context, timeout time.Duration) error {
	timeout, timeoutErr := h.registrationTimeout(timeout)

	h.mu.Lock()
	registered := h.registered
	h.mu.Unlock()

	expired := make(chan struct{})
	t := h.clock.AfterFunc(timeout, func() { close(expired) })
	defer t.Stop()

	select {
	case <-registered:
		return nil
	case <-expired:
		// A registration made by a timer due at the same instant wins.
		if h.hasRegistrations() {
			return nil
		}
		return timeoutErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunUntilRegistered drives virtual time until the platform has registered
// an accessory or timeout has elapsed. Every timer due in that window
// fires, one deadline at a time, so platforms that register from clock
// timers resolve without a separate Advance. With a real clock it behaves
// like WaitForRegistration.
func (h *Harness) RunUntilRegistered(ctx context.Context, timeout time.Duration) error {
	if h.virtual == nil {
		return h.WaitForRegistration(ctx, timeout)
	}
	timeout, timeoutErr := h.registrationTimeout(timeout)

	deadline := h.virtual.Now().Add(timeout)
	for {
		if h.hasRegistrations() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		next, ok := h.virtual.NextDeadline()
		if !ok || next.After(deadline) {
			h.virtual.AdvanceTo(deadline)
			if h.hasRegistrations() {
				return nil
			}
			return timeoutErr
		}
		h.virtual.AdvanceTo(next)
	}
}

func (h *Harness) registrationTimeout(timeout time.Duration) (time.Duration, error) {
	if timeout <= 0 {
		timeout = h.cfg.RegistrationTimeout
	}
	return timeout, &haperr.Error{
		Kind:       haperr.KindTimeout,
		Op:         "waitForRegistration",
		Target:     h.cfg.PlatformName,
		Constraint: fmt.Sprintf("no accessory registered within %s", timeout),
	}
}

func (h *Harness) hasRegistrations() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registeredClosed
}

func (h *Harness) signalRegisteredLocked() {
	if !h.registeredClosed {
		close(h.registered)
		h.registeredClosed = true
	}
}

// Advance moves virtual time forward by d and returns the number of timer
// callbacks fired. With a real clock it does nothing and returns 0.
func (h *Harness) Advance(d time.Duration) int {
	if h.virtual == nil {
		return 0
	}
	return h.virtual.Advance(d)
}

// Now returns the harness time.
func (h *Harness) Now() time.Time {
	return h.clock.Now()
}

// Shutdown stops the platform and saves the accessory cache. Later calls
// are no-ops.
func (h *Harness) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return nil
	}
	h.shutdown = true
	h.mu.Unlock()

	var err error
	if s, ok := h.platform.(Shutdowner); ok {
		if serr := s.Shutdown(ctx); serr != nil {
			err = multierr.Append(err, fmt.Errorf("platform shutdown: %w", serr))
		}
	}
	if h.cfg.CachePath != "" {
		if serr := cache.Save(h.cfg.CachePath, h.homekit.Accessories()); serr != nil {
			err = multierr.Append(err, fmt.Errorf("save accessory cache: %w", serr))
		}
	}
	if h.cfg.Hooks.OnShutdown != nil {
		h.cfg.Hooks.OnShutdown()
	}

	h.logger.Info("harness shut down", "platform", h.cfg.PlatformName)
	return err
}

// Config returns the effective configuration.
func (h *Harness) Config() Config { return h.cfg }

// HomeKit returns the mock controller.
func (h *Harness) HomeKit() *homekit.Controller { return h.homekit }

// Clock returns the harness clock.
func (h *Harness) Clock() clock.Clock { return h.clock }

// VirtualClock returns the virtual clock, or nil with Config.RealTime.
func (h *Harness) VirtualClock() *clock.Virtual { return h.virtual }

// Network returns the network simulator gating consumer operations.
func (h *Harness) Network() *netsim.Simulator { return h.network }

// API returns the platform API.
func (h *Harness) API() *API { return h.api }

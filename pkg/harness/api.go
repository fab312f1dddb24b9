package harness

import (
	"fmt"
	"slices"
	"time"

	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
	"github.com/hapkit/hap-go/pkg/log"
)

// Registration records one accessory registered by the platform.
type Registration struct {
	Plugin    string
	Platform  string
	UUID      string
	At        time.Time
	Accessory *hap.Accessory
}

// API is the surface the platform under test talks to.
type API struct {
	h *Harness
}

// RegisterPlatformAccessories publishes accs to the controller. It stops
// at the first accessory whose UUID is already registered.
func (a *API) RegisterPlatformAccessories(plugin, platform string, accs ...*hap.Accessory) error {
	h := a.h
	for _, acc := range accs {
		if err := h.homekit.AddAccessory(acc); err != nil {
			return fmt.Errorf("register %s: %w", acc.UUID(), err)
		}

		reg := Registration{
			Plugin:    plugin,
			Platform:  platform,
			UUID:      acc.UUID(),
			At:        h.clock.Now(),
			Accessory: acc,
		}
		h.mu.Lock()
		h.registrations = append(h.registrations, reg)
		h.signalRegisteredLocked()
		h.mu.Unlock()

		h.logger.Info("accessory registered", "plugin", plugin, "platform", platform, "uuid", acc.UUID())
		if h.cfg.Hooks.OnRegister != nil {
			h.cfg.Hooks.OnRegister(reg)
		}
	}
	return nil
}

// UnregisterPlatformAccessories removes accs from the controller.
func (a *API) UnregisterPlatformAccessories(plugin, platform string, accs ...*hap.Accessory) error {
	h := a.h
	for _, acc := range accs {
		if err := h.homekit.RemoveAccessory(acc.UUID()); err != nil {
			return fmt.Errorf("unregister %s: %w", acc.UUID(), err)
		}

		h.mu.Lock()
		h.registrations = slices.DeleteFunc(h.registrations, func(r Registration) bool {
			return r.UUID == acc.UUID()
		})
		h.mu.Unlock()

		h.logger.Info("accessory unregistered", "plugin", plugin, "platform", platform, "uuid", acc.UUID())
		if h.cfg.Hooks.OnUnregister != nil {
			h.cfg.Hooks.OnUnregister(Registration{
				Plugin:    plugin,
				Platform:  platform,
				UUID:      acc.UUID(),
				At:        h.clock.Now(),
				Accessory: acc,
			})
		}
	}
	return nil
}

// UpdatePlatformAccessories marks accs as changed. Every accessory must
// already be registered with the controller.
func (a *API) UpdatePlatformAccessories(accs ...*hap.Accessory) error {
	for _, acc := range accs {
		if a.h.homekit.Accessory(acc.UUID()) == nil {
			return haperr.New(haperr.KindNotFound, "update", acc.UUID(), "accessory not registered")
		}
		a.h.logger.Debug("accessory updated", "uuid", acc.UUID())
	}
	return nil
}

// Clock returns the harness clock. Platforms schedule their timers on it.
func (a *API) Clock() clock.Clock {
	return a.h.clock
}

// Logger returns the harness logger.
func (a *API) Logger() log.Logger {
	return a.h.logger
}

// GenerateUUID returns a deterministic accessory UUID for seed.
func (a *API) GenerateUUID(seed string) string {
	return hap.GenerateUUID(seed)
}

// CachedAccessories returns the accessories restored from the cache.
func (a *API) CachedAccessories() []*hap.Accessory {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()
	return slices.Clone(a.h.cached)
}

// Registrations returns the current registrations in order.
func (a *API) Registrations() []Registration {
	a.h.mu.Lock()
	defer a.h.mu.Unlock()
	return slices.Clone(a.h.registrations)
}

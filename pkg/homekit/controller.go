// Package homekit provides a mock HomeKit controller: it owns a set of
// accessories, a pairing flag and a stable controller identity, and runs
// batch reads across every readable characteristic.
package homekit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
	"github.com/hapkit/hap-go/pkg/log"
)

// DefaultName is the bridge model name used when none is configured.
const DefaultName = "hap-go Bridge"

// Option configures a Controller.
type Option func(*Controller)

// WithControllerID sets the controller identity. The default is a random
// UUID fixed for the lifetime of the controller.
func WithControllerID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.id = id
		}
	}
}

// WithName sets the bridge model name advertised in TXT records.
func WithName(name string) Option {
	return func(c *Controller) {
		if name != "" {
			c.name = name
		}
	}
}

// WithClock sets the clock accessories are bound to.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithGate routes consumer reads and writes through g.
func WithGate(g hap.Gate) Option {
	return func(c *Controller) {
		c.gate = g
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller is a mock HomeKit controller.
type Controller struct {
	id     string
	name   string
	clock  clock.Clock
	gate   hap.Gate
	logger log.Logger

	mu           sync.RWMutex
	accessories  map[string]*hap.Accessory
	paired       bool
	configNumber int
}

// New creates a controller with no accessories, unpaired.
func New(opts ...Option) *Controller {
	c := &Controller{
		id:           uuid.NewString(),
		name:         DefaultName,
		accessories:  make(map[string]*hap.Accessory),
		configNumber: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	c.logger = log.OrNop(c.logger)
	return c
}

// ControllerID returns the controller identity.
func (c *Controller) ControllerID() string {
	return c.id
}

// Name returns the bridge model name.
func (c *Controller) Name() string {
	return c.name
}

// AddAccessory adds acc and binds it to the controller runtime.
func (c *Controller) AddAccessory(acc *hap.Accessory) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.accessories[acc.UUID()]; exists {
		return haperr.Duplicate("add", acc.UUID(), "accessory UUID already registered")
	}

	acc.Bind(hap.Runtime{Clock: c.clock, Gate: c.gate, Logger: c.logger})
	c.accessories[acc.UUID()] = acc
	c.bumpConfigLocked()

	c.logger.Debug("accessory added", "uuid", acc.UUID(), "name", acc.DisplayName())
	return nil
}

// RemoveAccessory removes the accessory with the given UUID and closes
// the subscriptions on its characteristics.
func (c *Controller) RemoveAccessory(id string) error {
	c.mu.Lock()
	acc, exists := c.accessories[id]
	if !exists {
		c.mu.Unlock()
		return haperr.New(haperr.KindNotFound, "remove", id, "no such accessory")
	}
	delete(c.accessories, id)
	c.bumpConfigLocked()
	c.mu.Unlock()

	acc.CloseSubscriptions()
	c.logger.Debug("accessory removed", "uuid", id)
	return nil
}

// Accessory returns the accessory with the given UUID, or nil.
func (c *Controller) Accessory(id string) *hap.Accessory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessories[id]
}

// Accessories returns all accessories sorted by UUID.
func (c *Controller) Accessories() []*hap.Accessory {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*hap.Accessory, 0, len(c.accessories))
	for _, acc := range c.accessories {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID() < out[j].UUID() })
	return out
}

// Count returns the number of accessories.
func (c *Controller) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.accessories)
}

// Pair marks the controller as paired. It does not touch accessories.
func (c *Controller) Pair() {
	c.mu.Lock()
	c.paired = true
	c.mu.Unlock()
	c.logger.Info("paired", "controller", c.id)
}

// Unpair clears the paired flag.
func (c *Controller) Unpair() {
	c.mu.Lock()
	c.paired = false
	c.mu.Unlock()
	c.logger.Info("unpaired", "controller", c.id)
}

// IsPaired reports whether the controller is paired.
func (c *Controller) IsPaired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paired
}

// ConfigNumber returns the configuration number (HAP "c#"). It changes
// whenever the accessory set changes.
func (c *Controller) ConfigNumber() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configNumber
}

// bumpConfigLocked increments the config number, wrapping to 1 after
// 65535.
func (c *Controller) bumpConfigLocked() {
	c.configNumber++
	if c.configNumber > 65535 {
		c.configNumber = 1
	}
}

// DeviceID returns the MAC-style device identifier (HAP "id") derived
// from the controller ID.
func (c *Controller) DeviceID() string {
	u := uuid.NewSHA1(uuid.NameSpaceOID, []byte(c.id))
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", u[0], u[1], u[2], u[3], u[4], u[5])
}

package hap

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hapkit/hap-go/pkg/haperr"
)

// GetHandler produces the value for a consumer read.
type GetHandler func(ctx context.Context) (any, error)

// SetHandler is called with a validated value before a consumer write is
// committed. Returning an error leaves the stored value unchanged.
type SetHandler func(ctx context.Context, value any) error

// CharacteristicOption configures a Characteristic.
type CharacteristicOption func(*Characteristic)

// WithDisplayName sets the name the characteristic is keyed by within its
// service. The default is the characteristic type.
func WithDisplayName(name string) CharacteristicOption {
	return func(c *Characteristic) {
		if name != "" {
			c.name = name
		}
	}
}

// WithUUID sets the HAP type UUID (e.g. "25" for On).
func WithUUID(uuid string) CharacteristicOption {
	return func(c *Characteristic) {
		c.uuid = uuid
	}
}

// WriteOption configures a single SetValue or UpdateValue call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	context any
}

// WithEventContext attaches v to the change event emitted by the write.
func WithEventContext(v any) WriteOption {
	return func(o *writeOptions) {
		o.context = v
	}
}

// Characteristic is a single typed, permissioned property of a service.
type Characteristic struct {
	typ   string
	name  string
	uuid  string
	props Props

	mu    sync.Mutex
	value any
	onGet GetHandler
	onSet SetHandler
	subs  []*Subscription

	service atomic.Pointer[Service]
}

// NewCharacteristic creates a characteristic holding initial. A nil
// initial value is replaced by props.Default(). The initial value must
// satisfy props.
func NewCharacteristic(typ string, initial any, props Props, opts ...CharacteristicOption) (*Characteristic, error) {
	c := &Characteristic{
		typ:   typ,
		name:  typ,
		props: props.Clone(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if initial == nil {
		initial = c.props.Default()
	}
	v, constraint := c.props.Normalize(initial)
	if constraint != "" {
		return nil, haperr.Validation("create", c.name, initial, constraint)
	}
	c.value = v
	return c, nil
}

// Type returns the characteristic type name.
func (c *Characteristic) Type() string { return c.typ }

// Name returns the name the characteristic is keyed by.
func (c *Characteristic) Name() string { return c.name }

// UUID returns the HAP type UUID, if known.
func (c *Characteristic) UUID() string { return c.uuid }

// Props returns a copy of the characteristic props.
func (c *Characteristic) Props() Props { return c.props.Clone() }

// Perms returns the permission set.
func (c *Characteristic) Perms() Perm { return c.props.Perms }

// Service returns the owning service, or nil.
func (c *Characteristic) Service() *Service { return c.service.Load() }

// Value returns the stored value without permission checks or gating.
func (c *Characteristic) Value() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// OnGet installs the read handler. Nil removes it.
func (c *Characteristic) OnGet(h GetHandler) *Characteristic {
	c.mu.Lock()
	c.onGet = h
	c.mu.Unlock()
	return c
}

// OnSet installs the write handler. Nil removes it.
func (c *Characteristic) OnSet(h SetHandler) *Characteristic {
	c.mu.Lock()
	c.onSet = h
	c.mu.Unlock()
	return c
}

// GetValue performs a consumer read. It requires read permission and is
// routed through the runtime gate. When a read handler is installed its
// value is validated and stored before being returned.
func (c *Characteristic) GetValue(ctx context.Context) (any, error) {
	if !c.props.Perms.CanRead() {
		return nil, haperr.Permission("get", c.name, "read")
	}

	var out any
	err := c.runtime().apply(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		h := c.onGet
		c.mu.Unlock()

		if h == nil {
			out = c.Value()
			return nil
		}

		raw, err := h(ctx)
		if err != nil {
			return handlerError("get", c.name, err)
		}
		v, constraint := c.props.Normalize(raw)
		if constraint != "" {
			return haperr.Validation("get", c.name, raw, constraint)
		}

		c.mu.Lock()
		c.value = v
		c.mu.Unlock()
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetValue performs a consumer write. It requires write permission, is
// routed through the runtime gate, and commits only values that satisfy
// the props. Subscribers are notified before SetValue returns.
func (c *Characteristic) SetValue(ctx context.Context, v any, opts ...WriteOption) error {
	if !c.props.Perms.CanWrite() {
		return haperr.Permission("set", c.name, "write")
	}

	wo := applyWriteOptions(opts)
	rt := c.runtime()
	return rt.apply(ctx, func(ctx context.Context) error {
		nv, constraint := c.props.Normalize(v)
		if constraint != "" {
			return haperr.Validation("set", c.name, v, constraint)
		}

		c.mu.Lock()
		h := c.onSet
		c.mu.Unlock()
		if h != nil {
			if err := h(ctx, nv); err != nil {
				return handlerError("set", c.name, err)
			}
		}

		c.commit(rt, nv, wo.context)
		return nil
	})
}

// UpdateValue pushes a platform-side value. It skips the write permission
// check and the gate but applies the same validation as SetValue.
func (c *Characteristic) UpdateValue(v any, opts ...WriteOption) error {
	nv, constraint := c.props.Normalize(v)
	if constraint != "" {
		return haperr.Validation("update", c.name, v, constraint)
	}
	c.commit(c.runtime(), nv, applyWriteOptions(opts).context)
	return nil
}

// Subscribe registers for change events. It requires notify permission.
func (c *Characteristic) Subscribe() (*Subscription, error) {
	if !c.props.Perms.CanNotify() {
		return nil, haperr.Permission("subscribe", c.name, "notify")
	}

	s := &Subscription{c: c, active: true}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s, nil
}

// Subscribers returns the number of active subscriptions.
func (c *Characteristic) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// commit stores v and delivers the change event. Delivery happens under
// the characteristic lock so subscribers see mutations in commit order.
func (c *Characteristic) commit(rt *Runtime, v, eventCtx any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.value
	c.value = v

	rt.Logger.Debug("characteristic updated",
		"characteristic", c.name, "old", old, "new", v)

	if !c.props.Perms.CanNotify() || len(c.subs) == 0 {
		return
	}
	ev := c.newEvent(old, v, eventCtx, rt.Clock.Now())
	for _, s := range c.subs {
		s.deliver(ev)
	}
}

func (c *Characteristic) newEvent(old, v, eventCtx any, now time.Time) Event {
	ev := Event{
		CharacteristicType: c.typ,
		CharacteristicName: c.name,
		OldValue:           old,
		NewValue:           v,
		Timestamp:          now,
		Context:            eventCtx,
	}
	if s := c.service.Load(); s != nil {
		ev.ServiceType = s.Type()
		ev.ServiceSubtype = s.Subtype()
		if a := s.accessory.Load(); a != nil {
			ev.AccessoryUUID = a.UUID()
		}
	}
	return ev
}

func (c *Characteristic) removeSubscription(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(x *Subscription) bool { return x == s })
}

// closeSubscriptions cancels every subscription, e.g. when the
// characteristic is removed from its service.
func (c *Characteristic) closeSubscriptions() {
	c.mu.Lock()
	subs := slices.Clone(c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (c *Characteristic) runtime() *Runtime {
	if s := c.service.Load(); s != nil {
		return s.runtime()
	}
	return defaultRuntime
}

func applyWriteOptions(opts []WriteOption) writeOptions {
	var wo writeOptions
	for _, opt := range opts {
		opt(&wo)
	}
	return wo
}

func handlerError(op, target string, err error) error {
	return &haperr.Error{Kind: haperr.KindHandler, Op: op, Target: target, Err: err}
}

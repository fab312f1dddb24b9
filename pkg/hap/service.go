package hap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/hapkit/hap-go/pkg/haperr"
)

// PrimarySubtype is the subtype of a service created without one.
const PrimarySubtype = "primary"

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceUUID sets the HAP service type UUID (e.g. "43" for Lightbulb).
func WithServiceUUID(uuid string) ServiceOption {
	return func(s *Service) {
		s.uuid = uuid
	}
}

// Service is an ordered, named collection of characteristics.
type Service struct {
	typ     string
	name    string
	subtype string
	uuid    string

	mu    sync.RWMutex
	chars *orderedmap.OrderedMap[string, *Characteristic]

	accessory atomic.Pointer[Accessory]
}

// NewService creates an empty service. An empty displayName defaults to
// the type, an empty subtype to PrimarySubtype.
func NewService(typ, displayName, subtype string, opts ...ServiceOption) *Service {
	if displayName == "" {
		displayName = typ
	}
	if subtype == "" {
		subtype = PrimarySubtype
	}
	s := &Service{
		typ:     typ,
		name:    displayName,
		subtype: subtype,
		chars:   orderedmap.New[string, *Characteristic](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Type returns the service type name.
func (s *Service) Type() string { return s.typ }

// DisplayName returns the display name.
func (s *Service) DisplayName() string { return s.name }

// Subtype returns the subtype.
func (s *Service) Subtype() string { return s.subtype }

// UUID returns the HAP service type UUID, if known.
func (s *Service) UUID() string { return s.uuid }

// IsPrimary reports whether the service carries the default subtype.
func (s *Service) IsPrimary() bool { return s.subtype == PrimarySubtype }

// Accessory returns the owning accessory, or nil.
func (s *Service) Accessory() *Accessory { return s.accessory.Load() }

// AddCharacteristic appends c. Names are unique per service, and a
// characteristic belongs to at most one service.
func (s *Service) AddCharacteristic(c *Characteristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chars.Get(c.Name()); exists {
		return haperr.Duplicate("add", c.Name(),
			fmt.Sprintf("characteristic already exists on service %s", s.label()))
	}
	if !c.service.CompareAndSwap(nil, s) {
		return haperr.Duplicate("add", c.Name(), "characteristic already belongs to a service")
	}
	s.chars.Set(c.Name(), c)
	return nil
}

// GetCharacteristic returns the characteristic with the given name, or nil.
func (s *Service) GetCharacteristic(name string) *Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, _ := s.chars.Get(name)
	return c
}

// HasCharacteristic reports whether a characteristic with the name exists.
func (s *Service) HasCharacteristic(name string) bool {
	return s.GetCharacteristic(name) != nil
}

// RemoveCharacteristic detaches the named characteristic and closes its
// subscriptions. It returns false if no such characteristic exists.
func (s *Service) RemoveCharacteristic(name string) bool {
	s.mu.Lock()
	c, ok := s.chars.Delete(name)
	s.mu.Unlock()
	if !ok {
		return false
	}
	c.service.Store(nil)
	c.closeSubscriptions()
	return true
}

// Characteristics returns the characteristics in insertion order.
func (s *Service) Characteristics() []*Characteristic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Characteristic, 0, s.chars.Len())
	for pair := s.chars.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Get reads the named characteristic with GetValue.
func (s *Service) Get(ctx context.Context, name string) (any, error) {
	c, err := s.lookup("get", name)
	if err != nil {
		return nil, err
	}
	return c.GetValue(ctx)
}

// Set writes the named characteristic with SetValue.
func (s *Service) Set(ctx context.Context, name string, v any, opts ...WriteOption) error {
	c, err := s.lookup("set", name)
	if err != nil {
		return err
	}
	return c.SetValue(ctx, v, opts...)
}

// Update pushes a platform value to the named characteristic.
func (s *Service) Update(name string, v any, opts ...WriteOption) error {
	c, err := s.lookup("update", name)
	if err != nil {
		return err
	}
	return c.UpdateValue(v, opts...)
}

// GetBool reads a bool characteristic.
func (s *Service) GetBool(ctx context.Context, name string) (bool, error) {
	return getAs[bool](ctx, s, name)
}

// GetInt reads an integer characteristic.
func (s *Service) GetInt(ctx context.Context, name string) (int, error) {
	return getAs[int](ctx, s, name)
}

// GetFloat reads a numeric characteristic as float64.
func (s *Service) GetFloat(ctx context.Context, name string) (float64, error) {
	v, err := s.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, haperr.Validation("get", name, v, fmt.Sprintf("%T is not numeric", v))
	}
	return f, nil
}

// GetString reads a string characteristic.
func (s *Service) GetString(ctx context.Context, name string) (string, error) {
	return getAs[string](ctx, s, name)
}

func getAs[T any](ctx context.Context, s *Service, name string) (T, error) {
	var zero T
	v, err := s.Get(ctx, name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, haperr.Validation("get", name, v, fmt.Sprintf("%T is not %T", v, zero))
	}
	return t, nil
}

func (s *Service) lookup(op, name string) (*Characteristic, error) {
	c := s.GetCharacteristic(name)
	if c == nil {
		return nil, haperr.New(haperr.KindNotFound, op, name,
			fmt.Sprintf("no characteristic on service %s", s.label()))
	}
	return c, nil
}

// label renders the service as "Type" or "Type/subtype".
func (s *Service) label() string {
	if s.IsPrimary() {
		return s.typ
	}
	return s.typ + "/" + s.subtype
}

func (s *Service) runtime() *Runtime {
	if a := s.accessory.Load(); a != nil {
		return a.runtime()
	}
	return defaultRuntime
}

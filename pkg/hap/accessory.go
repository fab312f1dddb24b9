package hap

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hapkit/hap-go/pkg/haperr"
)

// uuidNamespace scopes name-based accessory UUIDs.
var uuidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://hapkit.dev/accessory"))

// GenerateUUID returns a deterministic UUID for seed. The same seed always
// yields the same UUID, so platforms can recreate accessories across runs.
func GenerateUUID(seed string) string {
	return uuid.NewSHA1(uuidNamespace, []byte(seed)).String()
}

// Accessory is a UUID-identified collection of services.
type Accessory struct {
	uuid string
	name string

	mu       sync.RWMutex
	services []*Service
	context  map[string]any

	rt atomic.Pointer[Runtime]
}

// NewAccessory creates an accessory with no services.
func NewAccessory(uuid, displayName string) *Accessory {
	return &Accessory{
		uuid:    uuid,
		name:    displayName,
		context: make(map[string]any),
	}
}

// UUID returns the accessory UUID.
func (a *Accessory) UUID() string { return a.uuid }

// DisplayName returns the display name.
func (a *Accessory) DisplayName() string { return a.name }

// Context returns the caller-owned data bag. The map is shared, not
// copied; callers synchronize their own access to it.
func (a *Accessory) Context() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.context
}

// SetContext replaces the data bag.
func (a *Accessory) SetContext(ctx map[string]any) {
	if ctx == nil {
		ctx = make(map[string]any)
	}
	a.mu.Lock()
	a.context = ctx
	a.mu.Unlock()
}

// Bind attaches the accessory, and every service it holds now or later,
// to rt.
func (a *Accessory) Bind(rt Runtime) {
	a.rt.Store(rt.withDefaults())
}

// Runtime returns the bound runtime, or the default one.
func (a *Accessory) Runtime() Runtime {
	return *a.runtime()
}

// AddService appends s. The (type, subtype) pair is unique per accessory,
// and a service belongs to at most one accessory.
func (a *Accessory) AddService(s *Service) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.findLocked(s.Type(), s.Subtype()) != nil {
		return haperr.Duplicate("add", s.label(),
			fmt.Sprintf("service already exists on accessory %s", a.uuid))
	}
	if !s.accessory.CompareAndSwap(nil, a) {
		return haperr.Duplicate("add", s.label(), "service already belongs to an accessory")
	}
	a.services = append(a.services, s)
	return nil
}

// GetService returns the service of the given type. Without a subtype it
// returns the first service of that type; an empty subtype means
// PrimarySubtype. It returns nil when absent.
func (a *Accessory) GetService(typ string, subtype ...string) *Service {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(subtype) > 0 {
		st := subtype[0]
		if st == "" {
			st = PrimarySubtype
		}
		return a.findLocked(typ, st)
	}
	for _, s := range a.services {
		if s.Type() == typ {
			return s
		}
	}
	return nil
}

// FindService looks up a service by reference: "Type" returns the first
// service of that type, "Type/subtype" the one with that subtype.
func (a *Accessory) FindService(ref string) *Service {
	typ, subtype, ok := strings.Cut(ref, "/")
	if !ok {
		return a.GetService(typ)
	}
	return a.GetService(typ, subtype)
}

// RemoveService detaches a service and closes the subscriptions of its
// characteristics. It returns false if no such service exists.
func (a *Accessory) RemoveService(typ, subtype string) bool {
	if subtype == "" {
		subtype = PrimarySubtype
	}

	a.mu.Lock()
	s := a.findLocked(typ, subtype)
	if s != nil {
		a.services = slices.DeleteFunc(a.services, func(x *Service) bool { return x == s })
	}
	a.mu.Unlock()

	if s == nil {
		return false
	}
	s.accessory.Store(nil)
	for _, c := range s.Characteristics() {
		c.closeSubscriptions()
	}
	return true
}

// CloseSubscriptions cancels every subscription on the accessory's
// characteristics. Pending waits fail with haperr.ErrCancelled.
func (a *Accessory) CloseSubscriptions() {
	for _, s := range a.Services() {
		for _, c := range s.Characteristics() {
			c.closeSubscriptions()
		}
	}
}

// Services returns the services in insertion order.
func (a *Accessory) Services() []*Service {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.services)
}

func (a *Accessory) findLocked(typ, subtype string) *Service {
	for _, s := range a.services {
		if s.Type() == typ && s.Subtype() == subtype {
			return s
		}
	}
	return nil
}

func (a *Accessory) runtime() *Runtime {
	if rt := a.rt.Load(); rt != nil {
		return rt
	}
	return defaultRuntime
}

// Package hapassert provides testify-style assertions over a simulated
// accessory graph.
//
// Every assertion takes an assert.TestingT, reports a failure through it
// and returns whether the assertion held, so callers can chain with
// require-like early returns:
//
//	if !hapassert.AccessoryExists(t, h, uuid) {
//		return
//	}
//
// Service arguments name a service type, or "type/subtype" to reach a
// service other than the first of its type.
package hapassert

import (
	"fmt"

	"github.com/stretchr/testify/assert"

	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
)

// Graph is the read side of a harness or controller.
type Graph interface {
	Accessory(uuid string) *hap.Accessory
	Accessories() []*hap.Accessory
}

type tHelper interface {
	Helper()
}

func helper(t assert.TestingT) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
}

// AccessoryExists asserts that an accessory with uuid is registered.
func AccessoryExists(t assert.TestingT, g Graph, uuid string, msgAndArgs ...any) bool {
	helper(t)
	if g.Accessory(uuid) == nil {
		return assert.Fail(t, fmt.Sprintf("accessory %q is not registered", uuid), msgAndArgs...)
	}
	return true
}

// AccessoryCount asserts the number of registered accessories.
func AccessoryCount(t assert.TestingT, g Graph, n int, msgAndArgs ...any) bool {
	helper(t)
	if got := len(g.Accessories()); got != n {
		return assert.Fail(t, fmt.Sprintf("expected %d accessories, found %d", n, got), msgAndArgs...)
	}
	return true
}

// HasService asserts that the accessory has a service of serviceType.
func HasService(t assert.TestingT, g Graph, uuid, serviceType string, msgAndArgs ...any) bool {
	helper(t)
	_, ok := service(t, g, uuid, serviceType, msgAndArgs...)
	return ok
}

// HasCharacteristic asserts that the accessory's service of serviceType
// carries a characteristic called name.
func HasCharacteristic(t assert.TestingT, g Graph, uuid, serviceType, name string, msgAndArgs ...any) bool {
	helper(t)
	_, ok := characteristic(t, g, uuid, serviceType, name, msgAndArgs...)
	return ok
}

// CharacteristicValue asserts the stored value of a characteristic.
// Numeric values compare across Go types, so 50 matches 50.0.
func CharacteristicValue(t assert.TestingT, g Graph, uuid, serviceType, name string, expected any, msgAndArgs ...any) bool {
	helper(t)
	c, ok := characteristic(t, g, uuid, serviceType, name, msgAndArgs...)
	if !ok {
		return false
	}
	return assert.EqualValues(t, expected, c.Value(), msgAndArgs...)
}

// Event asserts the old and new values of a change event.
func Event(t assert.TestingT, ev hap.Event, oldValue, newValue any, msgAndArgs ...any) bool {
	helper(t)
	if !assert.ObjectsAreEqualValues(oldValue, ev.OldValue) || !assert.ObjectsAreEqualValues(newValue, ev.NewValue) {
		return assert.Fail(t, fmt.Sprintf("event %s: expected %v -> %v, got %v -> %v",
			ev.CharacteristicName, oldValue, newValue, ev.OldValue, ev.NewValue), msgAndArgs...)
	}
	return true
}

// ErrorKind asserts that err carries kind.
func ErrorKind(t assert.TestingT, err error, kind haperr.Kind, msgAndArgs ...any) bool {
	helper(t)
	if err == nil {
		return assert.Fail(t, fmt.Sprintf("expected %s error, got nil", kind), msgAndArgs...)
	}
	if got := haperr.KindOf(err); got != kind {
		return assert.Fail(t, fmt.Sprintf("expected %s error, got %s: %v", kind, got, err), msgAndArgs...)
	}
	return true
}

func service(t assert.TestingT, g Graph, uuid, serviceType string, msgAndArgs ...any) (*hap.Service, bool) {
	acc := g.Accessory(uuid)
	if acc == nil {
		return nil, assert.Fail(t, fmt.Sprintf("accessory %q is not registered", uuid), msgAndArgs...)
	}
	svc := acc.FindService(serviceType)
	if svc == nil {
		return nil, assert.Fail(t, fmt.Sprintf("accessory %q has no %s service", uuid, serviceType), msgAndArgs...)
	}
	return svc, true
}

func characteristic(t assert.TestingT, g Graph, uuid, serviceType, name string, msgAndArgs ...any) (*hap.Characteristic, bool) {
	svc, ok := service(t, g, uuid, serviceType, msgAndArgs...)
	if !ok {
		return nil, false
	}
	c := svc.GetCharacteristic(name)
	if c == nil {
		return nil, assert.Fail(t, fmt.Sprintf("%s service on %q has no %s characteristic", serviceType, uuid, name), msgAndArgs...)
	}
	return c, true
}

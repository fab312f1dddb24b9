package harness

import "github.com/hapkit/hap-go/pkg/hap"

// The query methods read the graph directly. They perform no permission
// checks, do not pass the network gate, and never mutate state.

// Accessory returns the registered accessory with the UUID, or nil.
func (h *Harness) Accessory(uuid string) *hap.Accessory {
	return h.homekit.Accessory(uuid)
}

// Accessories returns all accessories sorted by UUID.
func (h *Harness) Accessories() []*hap.Accessory {
	return h.homekit.Accessories()
}

// Service returns the service of the given type on an accessory, or nil.
// Without a subtype the first service of the type is returned.
func (h *Harness) Service(uuid, serviceType string, subtype ...string) *hap.Service {
	acc := h.Accessory(uuid)
	if acc == nil {
		return nil
	}
	return acc.GetService(serviceType, subtype...)
}

// Characteristic returns a characteristic by accessory, service and name,
// or nil. The service is a type, or "type/subtype" for a service other
// than the first of its type.
func (h *Harness) Characteristic(uuid, service, name string) *hap.Characteristic {
	acc := h.Accessory(uuid)
	if acc == nil {
		return nil
	}
	svc := acc.FindService(service)
	if svc == nil {
		return nil
	}
	return svc.GetCharacteristic(name)
}

// CharacteristicValue returns the stored value of a characteristic and
// whether it exists. The service is referenced as for Characteristic.
func (h *Harness) CharacteristicValue(uuid, service, name string) (any, bool) {
	c := h.Characteristic(uuid, service, name)
	if c == nil {
		return nil, false
	}
	return c.Value(), true
}

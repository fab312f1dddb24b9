// Package hap models the HomeKit accessory graph used by the simulator.
//
// The hierarchy is:
//
//	Accessory (UUID, display name, context)
//	└── Service (type, subtype)
//	    └── Characteristic (name, props, value)
//
// Every characteristic operation is checked against the characteristic's
// permissions before it touches state. Consumer operations (GetValue,
// SetValue) are routed through the Gate of the Runtime the owning accessory
// is bound to; platform pushes (UpdateValue) are not. A successful commit
// on a characteristic with notify permission delivers an Event to each
// active Subscription before the call returns.
//
// Absence is not an error for lookups: GetService and GetCharacteristic
// return nil when nothing matches. Structural collisions fail with a
// haperr.KindDuplicate error and leave the graph unchanged.
package hap

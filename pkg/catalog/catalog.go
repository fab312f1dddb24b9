// Package catalog provides the standard HomeKit service and characteristic
// definitions, taken from the brutella/hap type tables.
package catalog

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"

	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
)

// CharacteristicDef describes a standard characteristic.
type CharacteristicDef struct {
	// Name is the characteristic name (e.g. "Brightness").
	Name string

	// UUID is the short HAP type UUID (e.g. "8").
	UUID string

	// Description is the HAP description string.
	Description string

	// Props are the default format, permissions and constraints.
	Props hap.Props
}

// ServiceDef describes a standard service.
type ServiceDef struct {
	Name     string
	UUID     string
	Required []string
	Optional []string
}

// characteristicSources maps names to brutella/hap constructors.
var characteristicSources = map[string]func() *characteristic.C{
	"Active":                     func() *characteristic.C { return characteristic.NewActive().C },
	"BatteryLevel":               func() *characteristic.C { return characteristic.NewBatteryLevel().C },
	"Brightness":                 func() *characteristic.C { return characteristic.NewBrightness().C },
	"ColorTemperature":           func() *characteristic.C { return characteristic.NewColorTemperature().C },
	"ContactSensorState":         func() *characteristic.C { return characteristic.NewContactSensorState().C },
	"CurrentAmbientLightLevel":   func() *characteristic.C { return characteristic.NewCurrentAmbientLightLevel().C },
	"CurrentHeatingCoolingState": func() *characteristic.C { return characteristic.NewCurrentHeatingCoolingState().C },
	"CurrentPosition":            func() *characteristic.C { return characteristic.NewCurrentPosition().C },
	"CurrentRelativeHumidity":    func() *characteristic.C { return characteristic.NewCurrentRelativeHumidity().C },
	"CurrentTemperature":         func() *characteristic.C { return characteristic.NewCurrentTemperature().C },
	"FirmwareRevision":           func() *characteristic.C { return characteristic.NewFirmwareRevision().C },
	"Hue":                        func() *characteristic.C { return characteristic.NewHue().C },
	"Identify":                   func() *characteristic.C { return characteristic.NewIdentify().C },
	"LockCurrentState":           func() *characteristic.C { return characteristic.NewLockCurrentState().C },
	"LockTargetState":            func() *characteristic.C { return characteristic.NewLockTargetState().C },
	"Manufacturer":               func() *characteristic.C { return characteristic.NewManufacturer().C },
	"Model":                      func() *characteristic.C { return characteristic.NewModel().C },
	"MotionDetected":             func() *characteristic.C { return characteristic.NewMotionDetected().C },
	"Name":                       func() *characteristic.C { return characteristic.NewName().C },
	"On":                         func() *characteristic.C { return characteristic.NewOn().C },
	"OutletInUse":                func() *characteristic.C { return characteristic.NewOutletInUse().C },
	"PositionState":              func() *characteristic.C { return characteristic.NewPositionState().C },
	"ProgrammableSwitchEvent":    func() *characteristic.C { return characteristic.NewProgrammableSwitchEvent().C },
	"RotationSpeed":              func() *characteristic.C { return characteristic.NewRotationSpeed().C },
	"Saturation":                 func() *characteristic.C { return characteristic.NewSaturation().C },
	"SerialNumber":               func() *characteristic.C { return characteristic.NewSerialNumber().C },
	"StatusLowBattery":           func() *characteristic.C { return characteristic.NewStatusLowBattery().C },
	"TargetHeatingCoolingState":  func() *characteristic.C { return characteristic.NewTargetHeatingCoolingState().C },
	"TargetPosition":             func() *characteristic.C { return characteristic.NewTargetPosition().C },
	"TargetTemperature":          func() *characteristic.C { return characteristic.NewTargetTemperature().C },
	"TemperatureDisplayUnits":    func() *characteristic.C { return characteristic.NewTemperatureDisplayUnits().C },
}

var services = []ServiceDef{
	{
		Name:     "AccessoryInformation",
		UUID:     service.TypeAccessoryInformation,
		Required: []string{"Identify", "Manufacturer", "Model", "Name", "SerialNumber", "FirmwareRevision"},
	},
	{
		Name:     "BatteryService",
		UUID:     service.TypeBatteryService,
		Required: []string{"BatteryLevel", "StatusLowBattery"},
		Optional: []string{"Name"},
	},
	{
		Name:     "ContactSensor",
		UUID:     service.TypeContactSensor,
		Required: []string{"ContactSensorState"},
		Optional: []string{"Name", "StatusLowBattery"},
	},
	{
		Name:     "Fan",
		UUID:     service.TypeFan,
		Required: []string{"On"},
		Optional: []string{"RotationSpeed", "Name"},
	},
	{
		Name:     "HumiditySensor",
		UUID:     service.TypeHumiditySensor,
		Required: []string{"CurrentRelativeHumidity"},
		Optional: []string{"Name", "StatusLowBattery"},
	},
	{
		Name:     "LightSensor",
		UUID:     service.TypeLightSensor,
		Required: []string{"CurrentAmbientLightLevel"},
		Optional: []string{"Name"},
	},
	{
		Name:     "Lightbulb",
		UUID:     service.TypeLightbulb,
		Required: []string{"On"},
		Optional: []string{"Brightness", "Hue", "Saturation", "ColorTemperature", "Name"},
	},
	{
		Name:     "LockMechanism",
		UUID:     service.TypeLockMechanism,
		Required: []string{"LockCurrentState", "LockTargetState"},
		Optional: []string{"Name"},
	},
	{
		Name:     "MotionSensor",
		UUID:     service.TypeMotionSensor,
		Required: []string{"MotionDetected"},
		Optional: []string{"Name", "StatusLowBattery"},
	},
	{
		Name:     "Outlet",
		UUID:     service.TypeOutlet,
		Required: []string{"On", "OutletInUse"},
		Optional: []string{"Name"},
	},
	{
		Name:     "StatelessProgrammableSwitch",
		UUID:     service.TypeStatelessProgrammableSwitch,
		Required: []string{"ProgrammableSwitchEvent"},
		Optional: []string{"Name"},
	},
	{
		Name:     "Switch",
		UUID:     service.TypeSwitch,
		Required: []string{"On"},
		Optional: []string{"Name"},
	},
	{
		Name:     "TemperatureSensor",
		UUID:     service.TypeTemperatureSensor,
		Required: []string{"CurrentTemperature"},
		Optional: []string{"Name", "StatusLowBattery"},
	},
	{
		Name:     "Thermostat",
		UUID:     service.TypeThermostat,
		Required: []string{"CurrentHeatingCoolingState", "TargetHeatingCoolingState", "CurrentTemperature", "TargetTemperature", "TemperatureDisplayUnits"},
		Optional: []string{"CurrentRelativeHumidity", "Name"},
	},
	{
		Name:     "WindowCovering",
		UUID:     service.TypeWindowCovering,
		Required: []string{"CurrentPosition", "TargetPosition", "PositionState"},
		Optional: []string{"Name"},
	},
}

var load = sync.OnceValue(func() map[string]CharacteristicDef {
	defs := make(map[string]CharacteristicDef, len(characteristicSources))
	for name, newC := range characteristicSources {
		defs[name] = fromHAP(name, newC())
	}
	return defs
})

// fromHAP converts a brutella/hap characteristic into a definition.
func fromHAP(name string, c *characteristic.C) CharacteristicDef {
	format, err := hap.ParseFormat(c.Format)
	if err != nil {
		panic(fmt.Sprintf("catalog: characteristic %s: %v", name, err))
	}

	var perms hap.Perm
	for _, code := range c.Permissions {
		// Codes the simulator does not model (e.g. "aa", "wr") are dropped.
		if p, err := hap.ParsePerms([]string{code}); err == nil {
			perms |= p
		}
	}

	return CharacteristicDef{
		Name:        name,
		UUID:        c.Type,
		Description: c.Description,
		Props: hap.Props{
			Format:      format,
			Perms:       perms,
			MinValue:    number(c.MinVal),
			MaxValue:    number(c.MaxVal),
			MinStep:     number(c.StepVal),
			Unit:        c.Unit,
			MaxLen:      c.MaxLen,
			ValidValues: slices.Clone(c.ValidVals),
		},
	}
}

func number(v any) *float64 {
	switch n := v.(type) {
	case int:
		return hap.Float(float64(n))
	case int32:
		return hap.Float(float64(n))
	case int64:
		return hap.Float(float64(n))
	case uint8:
		return hap.Float(float64(n))
	case uint16:
		return hap.Float(float64(n))
	case uint32:
		return hap.Float(float64(n))
	case uint64:
		return hap.Float(float64(n))
	case float32:
		return hap.Float(float64(n))
	case float64:
		return hap.Float(n)
	}
	return nil
}

// LookupCharacteristic returns the definition of a standard characteristic.
func LookupCharacteristic(name string) (CharacteristicDef, bool) {
	def, ok := load()[name]
	if ok {
		def.Props = def.Props.Clone()
	}
	return def, ok
}

// LookupService returns the definition of a standard service.
func LookupService(name string) (ServiceDef, bool) {
	for _, def := range services {
		if def.Name == name {
			return cloneService(def), true
		}
	}
	return ServiceDef{}, false
}

// Characteristics returns all characteristic definitions sorted by name.
func Characteristics() []CharacteristicDef {
	defs := load()
	out := make([]CharacteristicDef, 0, len(defs))
	for _, def := range defs {
		def.Props = def.Props.Clone()
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Services returns all service definitions sorted by name.
func Services() []ServiceDef {
	out := make([]ServiceDef, 0, len(services))
	for _, def := range services {
		out = append(out, cloneService(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Characteristic builds a standard characteristic with its default value.
func Characteristic(name string, opts ...hap.CharacteristicOption) (*hap.Characteristic, error) {
	def, ok := LookupCharacteristic(name)
	if !ok {
		return nil, notFound("characteristic", name)
	}
	opts = append([]hap.CharacteristicOption{hap.WithUUID(def.UUID)}, opts...)
	return hap.NewCharacteristic(name, nil, def.Props, opts...)
}

// Service builds a standard service holding its required characteristics.
func Service(name, subtype string) (*hap.Service, error) {
	def, ok := LookupService(name)
	if !ok {
		return nil, notFound("service", name)
	}

	svc := hap.NewService(name, name, subtype, hap.WithServiceUUID(def.UUID))
	for _, cname := range def.Required {
		c, err := Characteristic(cname)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}
		if err := svc.AddCharacteristic(c); err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}
	}
	return svc, nil
}

func cloneService(def ServiceDef) ServiceDef {
	def.Required = slices.Clone(def.Required)
	def.Optional = slices.Clone(def.Optional)
	return def
}

func notFound(what, name string) error {
	return haperr.New(haperr.KindNotFound, "lookup", name,
		fmt.Sprintf("no standard %s with this name", what))
}

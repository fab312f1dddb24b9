package fixture

// File is a fixture document.
type File struct {
	// Name is the bridge name. Optional.
	Name string `yaml:"name,omitempty"`

	// Accessories are built in order.
	Accessories []Accessory `yaml:"accessories"`
}

// Accessory describes one accessory. Exactly one of UUID and Seed is set;
// a seed is turned into a UUID with hap.GenerateUUID.
type Accessory struct {
	UUID     string         `yaml:"uuid,omitempty"`
	Seed     string         `yaml:"seed,omitempty"`
	Name     string         `yaml:"name,omitempty"`
	Context  map[string]any `yaml:"context,omitempty"`
	Services []Service      `yaml:"services"`
}

// Service describes one service. For standard types the required
// characteristics are added with their defaults when not listed.
type Service struct {
	Type            string           `yaml:"type"`
	Name            string           `yaml:"name,omitempty"`
	Subtype         string           `yaml:"subtype,omitempty"`
	Characteristics []Characteristic `yaml:"characteristics,omitempty"`
}

// Characteristic describes one characteristic. Props of a standard type
// come from the catalog; fields set here override them. Custom types must
// set at least Format.
type Characteristic struct {
	Type        string   `yaml:"type"`
	Name        string   `yaml:"name,omitempty"`
	Value       any      `yaml:"value,omitempty"`
	Format      string   `yaml:"format,omitempty"`
	Perms       []string `yaml:"perms,omitempty"`
	Min         *float64 `yaml:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty"`
	Step        *float64 `yaml:"step,omitempty"`
	Unit        string   `yaml:"unit,omitempty"`
	MaxLen      int      `yaml:"maxLen,omitempty"`
	ValidValues []int    `yaml:"validValues,omitempty"`
}

// LoadError describes a fixture that could not be loaded or built.
type LoadError struct {
	// File is the fixture path. Empty for Parse.
	File string

	// Message describes the error, prefixed with the element path.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

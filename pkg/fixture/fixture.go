// Package fixture loads accessory graphs from YAML.
//
// A fixture lists accessories with their services and characteristics:
//
//	name: Living Room
//	accessories:
//	  - seed: desk-lamp
//	    name: Desk Lamp
//	    services:
//	      - type: Lightbulb
//	        characteristics:
//	          - type: On
//	            value: true
//	          - type: Brightness
//	            value: 50
//
// Standard types take their UUIDs and props from package catalog.
package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hapkit/hap-go/pkg/catalog"
	"github.com/hapkit/hap-go/pkg/hap"
)

// Parse parses a fixture from YAML bytes. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	f, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return f, nil
}

func (f *File) validate() error {
	if len(f.Accessories) == 0 {
		return &LoadError{Message: "fixture must have at least one accessory"}
	}

	seen := make(map[string]bool)
	for i, acc := range f.Accessories {
		at := fmt.Sprintf("accessories[%d]", i)
		switch {
		case acc.UUID == "" && acc.Seed == "":
			return &LoadError{Message: at + ": uuid or seed is required"}
		case acc.UUID != "" && acc.Seed != "":
			return &LoadError{Message: at + ": uuid and seed are mutually exclusive"}
		}
		id := acc.id()
		if seen[id] {
			return &LoadError{Message: fmt.Sprintf("%s: duplicate accessory %s", at, id)}
		}
		seen[id] = true

		for j, svc := range acc.Services {
			sat := fmt.Sprintf("%s.services[%d]", at, j)
			if svc.Type == "" {
				return &LoadError{Message: sat + ": type is required"}
			}
			for k, c := range svc.Characteristics {
				if c.Type == "" {
					return &LoadError{Message: fmt.Sprintf("%s.characteristics[%d]: type is required", sat, k)}
				}
			}
		}
	}
	return nil
}

func (a Accessory) id() string {
	if a.UUID != "" {
		return a.UUID
	}
	return hap.GenerateUUID(a.Seed)
}

// Build creates the accessories. Every value is validated against its
// characteristic's props.
func (f *File) Build() ([]*hap.Accessory, error) {
	accs := make([]*hap.Accessory, 0, len(f.Accessories))
	for i, def := range f.Accessories {
		acc, err := def.build()
		if err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("accessories[%d]", i), Cause: err}
		}
		accs = append(accs, acc)
	}
	return accs, nil
}

func (a Accessory) build() (*hap.Accessory, error) {
	name := a.Name
	if name == "" {
		name = a.Seed
	}
	acc := hap.NewAccessory(a.id(), name)
	if a.Context != nil {
		acc.SetContext(a.Context)
	}

	for _, def := range a.Services {
		svc, err := def.build()
		if err != nil {
			return nil, err
		}
		if err := acc.AddService(svc); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (s Service) build() (*hap.Service, error) {
	var opts []hap.ServiceOption
	std, known := catalog.LookupService(s.Type)
	if known {
		opts = append(opts, hap.WithServiceUUID(std.UUID))
	}
	svc := hap.NewService(s.Type, s.Name, s.Subtype, opts...)

	for _, def := range s.Characteristics {
		c, err := def.build()
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", s.Type, err)
		}
		if err := svc.AddCharacteristic(c); err != nil {
			return nil, fmt.Errorf("service %s: %w", s.Type, err)
		}
	}

	if !known {
		return svc, nil
	}
	for _, name := range std.Required {
		if svc.HasCharacteristic(name) {
			continue
		}
		c, err := catalog.Characteristic(name)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", s.Type, err)
		}
		if err := svc.AddCharacteristic(c); err != nil {
			return nil, fmt.Errorf("service %s: %w", s.Type, err)
		}
	}
	return svc, nil
}

func (c Characteristic) build() (*hap.Characteristic, error) {
	props, opts, err := c.props()
	if err != nil {
		return nil, fmt.Errorf("characteristic %s: %w", c.Type, err)
	}
	if c.Name != "" {
		opts = append(opts, hap.WithDisplayName(c.Name))
	}
	return hap.NewCharacteristic(c.Type, c.Value, props, opts...)
}

// props merges the catalog definition with the explicit fields.
func (c Characteristic) props() (hap.Props, []hap.CharacteristicOption, error) {
	var (
		props hap.Props
		opts  []hap.CharacteristicOption
	)
	if std, ok := catalog.LookupCharacteristic(c.Type); ok {
		props = std.Props
		opts = append(opts, hap.WithUUID(std.UUID))
	} else {
		if c.Format == "" {
			return props, nil, errors.New("custom characteristic needs a format")
		}
		props.Perms = hap.PermReadOnly
	}

	if c.Format != "" {
		f, err := hap.ParseFormat(c.Format)
		if err != nil {
			return props, nil, err
		}
		props.Format = f
	}
	if len(c.Perms) > 0 {
		p, err := hap.ParsePerms(c.Perms)
		if err != nil {
			return props, nil, err
		}
		props.Perms = p
	}
	if c.Min != nil {
		props.MinValue = hap.Float(*c.Min)
	}
	if c.Max != nil {
		props.MaxValue = hap.Float(*c.Max)
	}
	if c.Step != nil {
		props.MinStep = hap.Float(*c.Step)
	}
	if c.Unit != "" {
		props.Unit = c.Unit
	}
	if c.MaxLen > 0 {
		props.MaxLen = c.MaxLen
	}
	if len(c.ValidValues) > 0 {
		props.ValidValues = slices.Clone(c.ValidValues)
	}
	return props, opts, nil
}

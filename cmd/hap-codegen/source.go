package main

import (
	"fmt"
	"go/token"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hapkit/hap-go/pkg/catalog"
	"github.com/hapkit/hap-go/pkg/hap"
)

// RawDefs is the YAML input format.
type RawDefs struct {
	Services        []RawService        `yaml:"services"`
	Characteristics []RawCharacteristic `yaml:"characteristics,omitempty"`
}

// RawService is a service definition.
type RawService struct {
	Name     string   `yaml:"name"`
	UUID     string   `yaml:"uuid,omitempty"`
	Required []string `yaml:"required"`
	Optional []string `yaml:"optional,omitempty"`
}

// RawCharacteristic defines a characteristic missing from the catalog.
type RawCharacteristic struct {
	Name   string   `yaml:"name"`
	Format string   `yaml:"format"`
	Perms  []string `yaml:"perms"`
}

// ServiceSpec is a resolved service ready for generation.
type ServiceSpec struct {
	Name     string
	UUID     string
	Required []CharSpec
	Optional []CharSpec
}

// CharSpec is a resolved characteristic.
type CharSpec struct {
	Name   string
	Format hap.Format
	Perms  hap.Perm

	// Custom characteristics are built from Format and Perms instead of
	// the catalog.
	Custom bool
}

// LoadDefs reads a YAML definitions file.
func LoadDefs(path string) (*RawDefs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs RawDefs
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &defs, nil
}

// CatalogDefs returns the standard services named in names, or all of
// them when names is empty.
func CatalogDefs(names []string) (*RawDefs, error) {
	var defs RawDefs
	for _, svc := range catalog.Services() {
		if len(names) > 0 && !slices.Contains(names, svc.Name) {
			continue
		}
		defs.Services = append(defs.Services, RawService{
			Name:     svc.Name,
			UUID:     svc.UUID,
			Required: svc.Required,
			Optional: svc.Optional,
		})
	}
	for _, name := range names {
		if _, ok := catalog.LookupService(name); !ok {
			return nil, fmt.Errorf("unknown service %q", name)
		}
	}
	return &defs, nil
}

// Resolve checks the definitions and attaches formats and permissions.
// Services are sorted by name.
func (d *RawDefs) Resolve() ([]ServiceSpec, error) {
	custom := make(map[string]CharSpec, len(d.Characteristics))
	for _, rc := range d.Characteristics {
		f, err := hap.ParseFormat(rc.Format)
		if err != nil {
			return nil, fmt.Errorf("characteristic %s: %w", rc.Name, err)
		}
		p, err := hap.ParsePerms(rc.Perms)
		if err != nil {
			return nil, fmt.Errorf("characteristic %s: %w", rc.Name, err)
		}
		if !token.IsIdentifier(rc.Name) {
			return nil, fmt.Errorf("characteristic %q is not a valid Go identifier", rc.Name)
		}
		custom[rc.Name] = CharSpec{Name: rc.Name, Format: f, Perms: p, Custom: true}
	}

	resolve := func(name string) (CharSpec, error) {
		if cs, ok := custom[name]; ok {
			return cs, nil
		}
		def, ok := catalog.LookupCharacteristic(name)
		if !ok {
			return CharSpec{}, fmt.Errorf("unknown characteristic %q", name)
		}
		return CharSpec{Name: name, Format: def.Props.Format, Perms: def.Props.Perms}, nil
	}

	specs := make([]ServiceSpec, 0, len(d.Services))
	seen := make(map[string]bool)
	for _, rs := range d.Services {
		if !token.IsIdentifier(rs.Name) {
			return nil, fmt.Errorf("service %q is not a valid Go identifier", rs.Name)
		}
		if seen[rs.Name] {
			return nil, fmt.Errorf("duplicate service %s", rs.Name)
		}
		seen[rs.Name] = true

		spec := ServiceSpec{Name: rs.Name, UUID: rs.UUID}
		if std, ok := catalog.LookupService(rs.Name); ok && spec.UUID == "" {
			spec.UUID = std.UUID
		}
		for _, name := range rs.Required {
			cs, err := resolve(name)
			if err != nil {
				return nil, fmt.Errorf("service %s: %w", rs.Name, err)
			}
			spec.Required = append(spec.Required, cs)
		}
		for _, name := range rs.Optional {
			cs, err := resolve(name)
			if err != nil {
				return nil, fmt.Errorf("service %s: %w", rs.Name, err)
			}
			spec.Optional = append(spec.Optional, cs)
		}
		specs = append(specs, spec)
	}

	slices.SortFunc(specs, func(a, b ServiceSpec) int { return strings.Compare(a.Name, b.Name) })
	return specs, nil
}

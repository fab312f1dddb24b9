// Package cache persists accessory graphs between simulator runs, the way
// a HomeKit bridge keeps its cached accessories.
//
// The file is CBOR with integer keys and canonical ordering, so the same
// graph always encodes to the same bytes.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/hapkit/hap-go/pkg/hap"
)

// Version is the current cache format version.
const Version = 1

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyQuiet,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// File is the on-disk cache document.
type File struct {
	Version     int         `cbor:"1,keyasint"`
	Accessories []Accessory `cbor:"2,keyasint"`
}

// Accessory is the cached form of a hap.Accessory.
type Accessory struct {
	UUID     string         `cbor:"1,keyasint"`
	Name     string         `cbor:"2,keyasint"`
	Context  map[string]any `cbor:"3,keyasint,omitempty"`
	Services []Service      `cbor:"4,keyasint"`
}

// Service is the cached form of a hap.Service.
type Service struct {
	Type            string           `cbor:"1,keyasint"`
	Name            string           `cbor:"2,keyasint"`
	Subtype         string           `cbor:"3,keyasint"`
	UUID            string           `cbor:"4,keyasint,omitempty"`
	Characteristics []Characteristic `cbor:"5,keyasint"`
}

// Characteristic is the cached form of a hap.Characteristic.
type Characteristic struct {
	Type        string   `cbor:"1,keyasint"`
	Name        string   `cbor:"2,keyasint"`
	UUID        string   `cbor:"3,keyasint,omitempty"`
	Format      string   `cbor:"4,keyasint"`
	Perms       []string `cbor:"5,keyasint"`
	MinValue    *float64 `cbor:"6,keyasint,omitempty"`
	MaxValue    *float64 `cbor:"7,keyasint,omitempty"`
	MinStep     *float64 `cbor:"8,keyasint,omitempty"`
	Unit        string   `cbor:"9,keyasint,omitempty"`
	MaxLen      int      `cbor:"10,keyasint,omitempty"`
	ValidValues []int    `cbor:"11,keyasint,omitempty"`
	Value       any      `cbor:"12,keyasint"`
}

// Snapshot captures the current state of accs. Values are read without
// permission checks or gating.
func Snapshot(accs []*hap.Accessory) *File {
	f := &File{Version: Version, Accessories: make([]Accessory, 0, len(accs))}
	for _, acc := range accs {
		ca := Accessory{
			UUID:    acc.UUID(),
			Name:    acc.DisplayName(),
			Context: acc.Context(),
		}
		for _, svc := range acc.Services() {
			cs := Service{
				Type:    svc.Type(),
				Name:    svc.DisplayName(),
				Subtype: svc.Subtype(),
				UUID:    svc.UUID(),
			}
			for _, c := range svc.Characteristics() {
				p := c.Props()
				cs.Characteristics = append(cs.Characteristics, Characteristic{
					Type:        c.Type(),
					Name:        c.Name(),
					UUID:        c.UUID(),
					Format:      string(p.Format),
					Perms:       p.Perms.Strings(),
					MinValue:    p.MinValue,
					MaxValue:    p.MaxValue,
					MinStep:     p.MinStep,
					Unit:        p.Unit,
					MaxLen:      p.MaxLen,
					ValidValues: p.ValidValues,
					Value:       c.Value(),
				})
			}
			ca.Services = append(ca.Services, cs)
		}
		f.Accessories = append(f.Accessories, ca)
	}
	return f
}

// Restore rebuilds the accessories described by f.
func (f *File) Restore() ([]*hap.Accessory, error) {
	out := make([]*hap.Accessory, 0, len(f.Accessories))
	for _, ca := range f.Accessories {
		acc := hap.NewAccessory(ca.UUID, ca.Name)
		if ca.Context != nil {
			acc.SetContext(ca.Context)
		}
		for _, cs := range ca.Services {
			svc := hap.NewService(cs.Type, cs.Name, cs.Subtype, hap.WithServiceUUID(cs.UUID))
			for _, cc := range cs.Characteristics {
				c, err := cc.restore()
				if err != nil {
					return nil, fmt.Errorf("accessory %s: service %s: %w", ca.UUID, cs.Type, err)
				}
				if err := svc.AddCharacteristic(c); err != nil {
					return nil, fmt.Errorf("accessory %s: %w", ca.UUID, err)
				}
			}
			if err := acc.AddService(svc); err != nil {
				return nil, fmt.Errorf("accessory %s: %w", ca.UUID, err)
			}
		}
		out = append(out, acc)
	}
	return out, nil
}

func (cc Characteristic) restore() (*hap.Characteristic, error) {
	format, err := hap.ParseFormat(cc.Format)
	if err != nil {
		return nil, err
	}
	perms, err := hap.ParsePerms(cc.Perms)
	if err != nil {
		return nil, err
	}
	props := hap.Props{
		Format:      format,
		Perms:       perms,
		MinValue:    cc.MinValue,
		MaxValue:    cc.MaxValue,
		MinStep:     cc.MinStep,
		Unit:        cc.Unit,
		MaxLen:      cc.MaxLen,
		ValidValues: cc.ValidValues,
	}
	return hap.NewCharacteristic(cc.Type, cc.Value, props,
		hap.WithDisplayName(cc.Name), hap.WithUUID(cc.UUID))
}

// Encode serializes accs.
func Encode(accs []*hap.Accessory) ([]byte, error) {
	return encMode.Marshal(Snapshot(accs))
}

// Decode parses a cache document and rebuilds its accessories.
func Decode(data []byte) ([]*hap.Accessory, error) {
	var f File
	if err := decMode.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode cache: %w", err)
	}
	if f.Version != Version {
		return nil, fmt.Errorf("unsupported cache version %d", f.Version)
	}
	return f.Restore()
}

// Save writes accs to path, creating parent directories as needed.
func Save(path string, accs []*hap.Accessory) error {
	data, err := Encode(accs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads the accessories cached at path. A missing file yields no
// accessories and no error.
func Load(path string) ([]*hap.Accessory, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

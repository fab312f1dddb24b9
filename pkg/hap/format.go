package hap

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Format is the value format of a characteristic.
type Format string

const (
	FormatBool   Format = "bool"
	FormatInt    Format = "int"
	FormatUint8  Format = "uint8"
	FormatUint16 Format = "uint16"
	FormatUint32 Format = "uint32"
	FormatUint64 Format = "uint64"
	FormatFloat  Format = "float"
	FormatString Format = "string"
	FormatTLV8   Format = "tlv8"
	FormatData   Format = "data"
)

// DefaultMaxLen is the maximum string length when Props.MaxLen is zero.
const DefaultMaxLen = 64

// stepTolerance absorbs float rounding on the step grid check.
const stepTolerance = 1e-9

// formatInt32 is the HAP wire name of the signed integer format.
const formatInt32 = "int32"

// ParseFormat parses a HAP format name. "int32" is accepted as FormatInt.
func ParseFormat(s string) (Format, error) {
	if s == formatInt32 {
		return FormatInt, nil
	}
	f := Format(s)
	switch f {
	case FormatBool, FormatInt, FormatUint8, FormatUint16, FormatUint32,
		FormatUint64, FormatFloat, FormatString, FormatTLV8, FormatData:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// IsInteger returns true for the integer formats.
func (f Format) IsInteger() bool {
	switch f {
	case FormatInt, FormatUint8, FormatUint16, FormatUint32, FormatUint64:
		return true
	}
	return false
}

// IsNumeric returns true for integer and float formats.
func (f Format) IsNumeric() bool {
	return f == FormatFloat || f.IsInteger()
}

// IsText returns true for the formats carried as Go strings.
func (f Format) IsText() bool {
	return f == FormatString || f == FormatTLV8 || f == FormatData
}

// bounds returns the representable range of an integer format.
func (f Format) bounds() (lo, hi float64) {
	switch f {
	case FormatInt:
		return math.MinInt32, math.MaxInt32
	case FormatUint8:
		return 0, math.MaxUint8
	case FormatUint16:
		return 0, math.MaxUint16
	case FormatUint32:
		return 0, math.MaxUint32
	default:
		// uint64 values are carried as int and must stay exact in float64.
		return 0, 1 << 53
	}
}

// Zero returns the zero value of the format in its normalized Go type.
func (f Format) Zero() any {
	switch {
	case f == FormatBool:
		return false
	case f.IsInteger():
		return 0
	case f == FormatFloat:
		return 0.0
	default:
		return ""
	}
}

// Props describes the format and constraints of a characteristic.
type Props struct {
	// Format is the value format.
	Format Format

	// Perms is the permission set.
	Perms Perm

	// MinValue is the inclusive lower bound (numeric formats).
	MinValue *float64

	// MaxValue is the inclusive upper bound (numeric formats).
	MaxValue *float64

	// MinStep is the step grid, anchored at MinValue or 0.
	MinStep *float64

	// Unit is the unit of measurement (e.g. "percentage", "celsius").
	Unit string

	// MaxLen caps string length; zero means DefaultMaxLen.
	MaxLen int

	// ValidValues restricts integer formats to an enumeration.
	ValidValues []int
}

// Float returns a pointer to f, for Props bounds.
func Float(f float64) *float64 {
	return &f
}

// Clone returns a deep copy of p.
func (p Props) Clone() Props {
	out := p
	out.MinValue = clonePtr(p.MinValue)
	out.MaxValue = clonePtr(p.MaxValue)
	out.MinStep = clonePtr(p.MinStep)
	out.ValidValues = slices.Clone(p.ValidValues)
	return out
}

func clonePtr(f *float64) *float64 {
	if f == nil {
		return nil
	}
	return Float(*f)
}

// Default returns the initial value a freshly created characteristic with
// these props should carry: MinValue for numeric formats that define one,
// the first valid value for enumerations, the format zero value otherwise.
func (p Props) Default() any {
	switch {
	case p.Format.IsInteger() && len(p.ValidValues) > 0:
		return p.ValidValues[0]
	case p.Format.IsInteger() && p.MinValue != nil:
		return int(*p.MinValue)
	case p.Format == FormatFloat && p.MinValue != nil:
		return *p.MinValue
	}
	return p.Format.Zero()
}

// Normalize converts v to the Go type of the format and checks it against
// the constraints. Checks run in order: type, range, step, valid values,
// string length. The returned string describes the violated constraint.
func (p Props) Normalize(v any) (any, string) {
	switch {
	case p.Format == FormatBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(v, p.Format)
		}
		return b, ""

	case p.Format.IsInteger():
		n, ok := toFloat64(v)
		if !ok {
			return nil, typeMismatch(v, p.Format)
		}
		if n != math.Trunc(n) {
			return nil, fmt.Sprintf("value %v is not an integer", v)
		}
		if lo, hi := p.Format.bounds(); n < lo || n > hi {
			return nil, fmt.Sprintf("value %v out of %s range", v, p.Format)
		}
		if c := p.checkNumeric(n); c != "" {
			return nil, c
		}
		i := int(n)
		if len(p.ValidValues) > 0 && !slices.Contains(p.ValidValues, i) {
			return nil, fmt.Sprintf("value %d not in validValues %v", i, p.ValidValues)
		}
		return i, ""

	case p.Format == FormatFloat:
		n, ok := toFloat64(v)
		if !ok {
			return nil, typeMismatch(v, p.Format)
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Sprintf("value %v is not finite", v)
		}
		if c := p.checkNumeric(n); c != "" {
			return nil, c
		}
		return n, ""

	case p.Format.IsText():
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case []byte:
			if p.Format == FormatString {
				return nil, typeMismatch(v, p.Format)
			}
			s = string(t)
		default:
			return nil, typeMismatch(v, p.Format)
		}
		if p.Format == FormatString {
			maxLen := p.MaxLen
			if maxLen <= 0 {
				maxLen = DefaultMaxLen
			}
			if len(s) > maxLen {
				return nil, fmt.Sprintf("length %d > maxLen %d", len(s), maxLen)
			}
		}
		return s, ""
	}

	return nil, fmt.Sprintf("unsupported format %q", p.Format)
}

func (p Props) checkNumeric(n float64) string {
	if p.MinValue != nil && n < *p.MinValue {
		return fmt.Sprintf("value %s < minValue %s", formatNum(n), formatNum(*p.MinValue))
	}
	if p.MaxValue != nil && n > *p.MaxValue {
		return fmt.Sprintf("value %s > maxValue %s", formatNum(n), formatNum(*p.MaxValue))
	}
	if p.MinStep != nil && *p.MinStep > 0 {
		base := 0.0
		if p.MinValue != nil {
			base = *p.MinValue
		}
		q := (n - base) / *p.MinStep
		if math.Abs(q-math.Round(q)) > stepTolerance {
			return fmt.Sprintf("value %s off minStep %s grid", formatNum(n), formatNum(*p.MinStep))
		}
	}
	return ""
}

func typeMismatch(v any, f Format) string {
	return fmt.Sprintf("%T is not a valid %s value", v, f)
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toFloat64 converts Go numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

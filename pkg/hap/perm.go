package hap

import (
	"fmt"
	"slices"
	"strings"
)

// Perm is a set of characteristic permissions.
type Perm uint8

const (
	// PermRead allows reading the value ("pr").
	PermRead Perm = 1 << iota

	// PermWrite allows consumer writes ("pw").
	PermWrite

	// PermNotify allows subscribing to change events ("ev").
	PermNotify

	// PermHidden marks the characteristic as hidden from users ("hd").
	PermHidden

	// PermTimedWrite requires timed writes ("tw").
	PermTimedWrite

	// Common combinations.

	// PermReadOnly is read and notify.
	PermReadOnly = PermRead | PermNotify

	// PermReadWrite is read, write, and notify.
	PermReadWrite = PermRead | PermWrite | PermNotify
)

var permCodes = []struct {
	perm    Perm
	code    string
	aliases []string
}{
	{PermRead, "pr", []string{"read"}},
	{PermWrite, "pw", []string{"write"}},
	{PermNotify, "ev", []string{"notify", "events"}},
	{PermHidden, "hd", []string{"hidden"}},
	{PermTimedWrite, "tw", []string{"timed-write", "timedwrite"}},
}

// CanRead returns true if reading is allowed.
func (p Perm) CanRead() bool { return p&PermRead != 0 }

// CanWrite returns true if consumer writes are allowed.
func (p Perm) CanWrite() bool { return p&PermWrite != 0 }

// CanNotify returns true if subscribing is allowed.
func (p Perm) CanNotify() bool { return p&PermNotify != 0 }

// Strings returns the HAP permission codes in canonical order.
func (p Perm) Strings() []string {
	var out []string
	for _, pc := range permCodes {
		if p&pc.perm != 0 {
			out = append(out, pc.code)
		}
	}
	return out
}

// String returns the permission codes joined by commas, or "-" when empty.
func (p Perm) String() string {
	s := p.Strings()
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ",")
}

// ParsePerms parses HAP permission codes ("pr", "pw", "ev", "hd", "tw")
// or their long names ("read", "write", "notify", ...).
func ParsePerms(codes []string) (Perm, error) {
	var p Perm
	for _, raw := range codes {
		code := strings.ToLower(strings.TrimSpace(raw))
		found := false
		for _, pc := range permCodes {
			if code == pc.code || slices.Contains(pc.aliases, code) {
				p |= pc.perm
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown permission %q", raw)
		}
	}
	return p, nil
}

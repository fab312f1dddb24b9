// Package haperr defines the error kinds shared by the simulation packages.
//
// Every failure carries a Kind plus structured context (operation, target,
// attempted value, violated constraint) instead of relying on a type
// hierarchy. Callers match kinds with errors.Is against the package
// sentinels:
//
//	if errors.Is(err, haperr.ErrPermission) { ... }
//	if errors.Is(err, haperr.ErrPacketLoss) { ... }
package haperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPermission
	KindValidation
	KindDuplicate
	KindNetwork
	KindTimeout
	KindCancelled
	KindNotFound
	KindHandler
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "PERMISSION"
	case KindValidation:
		return "VALIDATION"
	case KindDuplicate:
		return "DUPLICATE"
	case KindNetwork:
		return "NETWORK"
	case KindTimeout:
		return "TIMEOUT"
	case KindCancelled:
		return "CANCELLED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindHandler:
		return "HANDLER"
	default:
		return "UNKNOWN"
	}
}

// Reason refines a network error.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonDisconnected
	ReasonPacketLoss
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonDisconnected:
		return "DISCONNECTED"
	case ReasonPacketLoss:
		return "PACKET_LOSS"
	default:
		return ""
	}
}

// Error is a classified failure with structured context.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Reason refines KindNetwork failures.
	Reason Reason

	// Op is the operation that failed (e.g. "set", "subscribe").
	Op string

	// Target names the object the operation was aimed at.
	Target string

	// Value is the attempted value, if any.
	Value any

	// Constraint describes the violated rule.
	Constraint string

	// Err is the underlying cause.
	Err error
}

// Error renders the error as "<op> <target>: <kind>[ (<reason>)]: <constraint>".
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Target != "" {
			b.WriteByte(' ')
			b.WriteString(e.Target)
		}
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(e.Kind.String()))
	if e.Reason != ReasonNone {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if e.Constraint != "" {
		b.WriteString(": ")
		b.WriteString(e.Constraint)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind. A sentinel with
// a Reason only matches errors with that reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == ReasonNone || t.Reason == e.Reason
}

// Sentinels for errors.Is matching.
var (
	ErrPermission   = &Error{Kind: KindPermission}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrDuplicate    = &Error{Kind: KindDuplicate}
	ErrNetwork      = &Error{Kind: KindNetwork}
	ErrDisconnected = &Error{Kind: KindNetwork, Reason: ReasonDisconnected}
	ErrPacketLoss   = &Error{Kind: KindNetwork, Reason: ReasonPacketLoss}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrCancelled    = &Error{Kind: KindCancelled}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrHandler      = &Error{Kind: KindHandler}
)

// New creates an error of the given kind.
func New(kind Kind, op, target, constraint string) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Constraint: constraint}
}

// Permission reports a missing permission for op on target.
func Permission(op, target, perm string) *Error {
	return &Error{
		Kind:       KindPermission,
		Op:         op,
		Target:     target,
		Constraint: "missing " + perm + " permission",
	}
}

// Validation reports that value violates constraint.
func Validation(op, target string, value any, constraint string) *Error {
	return &Error{
		Kind:       KindValidation,
		Op:         op,
		Target:     target,
		Value:      value,
		Constraint: constraint,
	}
}

// Duplicate reports a structural collision.
func Duplicate(op, target, constraint string) *Error {
	return &Error{Kind: KindDuplicate, Op: op, Target: target, Constraint: constraint}
}

// Network reports a simulated network fault.
func Network(op string, reason Reason) *Error {
	return &Error{Kind: KindNetwork, Reason: reason, Op: op}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

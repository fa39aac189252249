// Package errkind classifies the errors this filesystem can return so that
// callers across cgroup resolution, proc rendering, and the eBPF assembler
// can react consistently without caring which layer produced the failure.
package errkind

import "errors"

// Kind is one of the error classes from the error handling design: the
// daemon never exits on a per-operation error, it degrades per kind.
type Kind int

const (
	// Unknown is the zero value; Classify never returns it for a
	// non-nil error that was wrapped with one of the sentinels below.
	Unknown Kind = iota
	NotSupported
	NotFound
	Permission
	Invalid
	Busy
	Transient
	Fatal
)

func (k Kind) String() string {
	switch k {
	case NotSupported:
		return "not-supported"
	case NotFound:
		return "not-found"
	case Permission:
		return "permission"
	case Invalid:
		return "invalid"
	case Busy:
		return "busy"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinels to wrap with fmt.Errorf("...: %w", sentinel) at the point an
// error is classified. Callers match with errors.Is.
var (
	ErrNotSupported = errors.New("not supported by this kernel")
	ErrNotFound     = errors.New("cgroup path not found")
	ErrPermission   = errors.New("permission denied")
	ErrInvalid      = errors.New("malformed controller file")
	ErrBusy         = errors.New("resource busy")
	ErrTransient    = errors.New("transient kernel error")
	ErrFatal        = errors.New("internal invariant broken")
)

// Classify maps err to the Kind of its nearest sentinel, walking the chain
// with errors.Is. Unwrapped errors are Unknown.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, ErrNotSupported):
		return NotSupported
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrPermission):
		return Permission
	case errors.Is(err, ErrInvalid):
		return Invalid
	case errors.Is(err, ErrBusy):
		return Busy
	case errors.Is(err, ErrTransient):
		return Transient
	case errors.Is(err, ErrFatal):
		return Fatal
	default:
		return Unknown
	}
}

// Package fault classifies errors into the small closed set of kinds the
// pipeline distinguishes: network failures, storage failures, parse
// ambiguities, and skipped rows. Wrapped errors keep their eris stack so
// log output stays debuggable.
package fault

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind is the failure category of a pipeline error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork covers fetch failures: transport errors, non-2xx
	// responses, exhausted retries.
	KindNetwork
	// KindStorage covers blob and database failures.
	KindStorage
	// KindAmbiguity marks input the fixed parsing rules cannot decide;
	// it is always fatal for the artifact, never guessed around.
	KindAmbiguity
	// KindRowSkipped marks a single unusable row inside an otherwise
	// parseable file.
	KindRowSkipped
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindStorage:
		return "storage"
	case KindAmbiguity:
		return "ambiguity"
	case KindRowSkipped:
		return "row_skipped"
	default:
		return "unknown"
	}
}

// Error is a kinded error. It unwraps to the underlying cause so callers
// can still use errors.Is against sentinel errors.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

// New creates a kinded error with a fixed message.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: eris.New(msg)}
}

// Errorf creates a kinded error with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, err: eris.New(fmt.Sprintf(format, args...))}
}

// Wrap annotates err with a kind and message. Returns nil when err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: eris.Wrap(err, msg)}
}

// Wrapf annotates err with a kind and formatted message. Returns nil when
// err is nil.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: eris.Wrap(err, fmt.Sprintf(format, args...))}
}

// KindOf returns the kind of the nearest *Error in err's chain, or
// KindUnknown when the chain carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

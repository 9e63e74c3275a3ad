// Package oxerr defines the error kinds shared by every container codec in
// this module (sizetype, archive, format/oidl, format/oica, format/oish).
//
// Every fallible operation returns one of these types (or a wrapped form of
// one, via fmt.Errorf("...: %w", err)), never a bare errors.New string, so
// callers can discriminate failure classes with errors.As.
package oxerr

import "fmt"

// Kind classifies a failure the way the core's decode pipeline (spec §4.9)
// distinguishes them: callers branch on Kind, not on message text.
type Kind int

const (
	// KindInvalidParameter is raised when a caller-supplied value is out of
	// its declared domain (bad enum, bad flag combination).
	KindInvalidParameter Kind = iota
	// KindOutOfBounds is raised when a declared offset/length exceeds the
	// buffer or the format's limit.
	KindOutOfBounds
	// KindInvalidState is raised when on-disk bytes contradict themselves.
	KindInvalidState
	// KindUnauthorized is raised on a missing key, an AEAD tag mismatch, or
	// a header hash mismatch.
	KindUnauthorized
	// KindAlreadyDefined is raised on a path, name, or entrypoint collision.
	KindAlreadyDefined
	// KindNotFound is raised on an archive lookup miss.
	KindNotFound
	// KindConstData is raised when a mutation is required on a read-only
	// buffer (in-place decrypt).
	KindConstData
	// KindOverflow is raised when size accounting exceeds the format's
	// 48-bit buffer ceiling.
	KindOverflow
	// KindUnsupported is raised on a reserved flag, unknown magic, or
	// unknown version.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "InvalidParameter"
	case KindOutOfBounds:
		return "OutOfBounds"
	case KindInvalidState:
		return "InvalidState"
	case KindUnauthorized:
		return "Unauthorized"
	case KindAlreadyDefined:
		return "AlreadyDefined"
	case KindNotFound:
		return "NotFound"
	case KindConstData:
		return "ConstData"
	case KindOverflow:
		return "Overflow"
	case KindUnsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every operation in this
// module. Field is optional context (a parameter name, a path, a field
// name) used to build a useful message without needing a format string at
// every call site.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "oidl.Write", "archive.AddFile"
	Field   string // offending field/parameter/path, if any
	Message string // human-readable detail
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Message != "":
		return fmt.Sprintf("%s: %s (%s): %s", e.Op, e.Kind, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Field)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Is lets errors.Is(err, &oxerr.Error{Kind: ...}) comparisons work by
// matching on Kind alone -- callers more commonly use errors.As to get the
// Kind field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, op, field, message string) *Error {
	return &Error{Kind: kind, Op: op, Field: field, Message: message}
}

func InvalidParameter(op, field, message string) *Error {
	return New(KindInvalidParameter, op, field, message)
}

func OutOfBounds(op, field, message string) *Error {
	return New(KindOutOfBounds, op, field, message)
}

func InvalidState(op, field, message string) *Error {
	return New(KindInvalidState, op, field, message)
}

func Unauthorized(op, field, message string) *Error {
	return New(KindUnauthorized, op, field, message)
}

func AlreadyDefined(op, field, message string) *Error {
	return New(KindAlreadyDefined, op, field, message)
}

func NotFound(op, field, message string) *Error {
	return New(KindNotFound, op, field, message)
}

func ConstData(op, field, message string) *Error {
	return New(KindConstData, op, field, message)
}

func Overflow(op, field, message string) *Error {
	return New(KindOverflow, op, field, message)
}

func Unsupported(op, field, message string) *Error {
	return New(KindUnsupported, op, field, message)
}

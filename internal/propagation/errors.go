package propagation

import (
	"fmt"
	"strings"
)

// Kind classifies propagation errors.
type Kind int

const (
	NullArgument Kind = iota + 1
	NameConflict
	SingularJacobian
	OutOfRangeBefore
	OutOfRangeAfter
	NonResettable
	UnsupportedParameter
	MissingParameter
	UnknownAdditionalState
	DimensionMismatch
	CyclicDependency
)

var kindFormats = map[Kind]string{
	NullArgument:           "null argument %v",
	NameConflict:           "name %q is already used",
	SingularJacobian:       "singular jacobian for orbit type %v",
	OutOfRangeBefore:       "date %v is before ephemeris start %v by %v",
	OutOfRangeAfter:        "date %v is after ephemeris end %v by %v",
	NonResettable:          "initial state of a generated ephemeris cannot be reset",
	UnsupportedParameter:   "unsupported parameter %q, supported parameters: %v",
	MissingParameter:       "missing value for parameter %q",
	UnknownAdditionalState: "unknown additional state %q",
	DimensionMismatch:      "dimension %v does not match expected dimension %v",
	CyclicDependency:       "cyclic dependency between additional providers %v",
}

func (k Kind) String() string {
	switch k {
	case NullArgument:
		return "null-argument"
	case NameConflict:
		return "name-conflict"
	case SingularJacobian:
		return "singular-jacobian"
	case OutOfRangeBefore:
		return "out-of-range-before"
	case OutOfRangeAfter:
		return "out-of-range-after"
	case NonResettable:
		return "non-resettable"
	case UnsupportedParameter:
		return "unsupported-parameter"
	case MissingParameter:
		return "missing-parameter"
	case UnknownAdditionalState:
		return "unknown-additional-state"
	case DimensionMismatch:
		return "dimension-mismatch"
	case CyclicDependency:
		return "cyclic-dependency"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the structured error of the propagation packages. Args hold the
// offending names, dates or sizes in the order of the kind's message.
type Error struct {
	Kind Kind
	Args []any
}

// NewError returns an error of the given kind.
func NewError(kind Kind, args ...any) *Error {
	return &Error{Kind: kind, Args: args}
}

func (e *Error) Error() string {
	format, ok := kindFormats[e.Kind]
	if !ok || strings.Count(format, "%") != len(e.Args) {
		return fmt.Sprintf("propagation: %v %v", e.Kind, e.Args)
	}
	return "propagation: " + fmt.Sprintf(format, e.Args...)
}

// Is matches any *Error of the same kind, so that errors.Is(err,
// ErrNameConflict) holds whatever the arguments.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNullArgument           = &Error{Kind: NullArgument}
	ErrNameConflict           = &Error{Kind: NameConflict}
	ErrSingularJacobian       = &Error{Kind: SingularJacobian}
	ErrOutOfRangeBefore       = &Error{Kind: OutOfRangeBefore}
	ErrOutOfRangeAfter        = &Error{Kind: OutOfRangeAfter}
	ErrNonResettable          = &Error{Kind: NonResettable}
	ErrUnsupportedParameter   = &Error{Kind: UnsupportedParameter}
	ErrMissingParameter       = &Error{Kind: MissingParameter}
	ErrUnknownAdditionalState = &Error{Kind: UnknownAdditionalState}
	ErrDimensionMismatch      = &Error{Kind: DimensionMismatch}
	ErrCyclicDependency       = &Error{Kind: CyclicDependency}
)

package triplestore

import (
	"errors"
	"fmt"
)

// Kind classifies failures that surface as errors.
// Missing databases and lost head races are not errors: they are reported
// as nil results and false returns respectively.
type Kind uint8

const (
	KindUnknown           Kind = iota
	KindIO                     // Persistence failed (disk, permission, corruption)
	KindAlreadyExists          // Name already registered
	KindContractViolation      // Caller misuse: unbound ids, consumed builders, stale handles
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindAlreadyExists:
		return "already-exists"
	case KindContractViolation:
		return "contract-violation"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyExists     = errors.New("database already exists")
	ErrBuilderCommitted  = errors.New("builder has already been committed")
	ErrUnboundId         = errors.New("identifier has no binding in layer lineage")
	ErrNotNode           = errors.New("identifier is not bound to a node")
	ErrInvalidKind       = errors.New("object kind is neither node nor value")
	ErrInvalidHandle     = errors.New("invalid or released handle")
	ErrLayerNotPersisted = errors.New("layer is not persisted in this store")
	ErrCorruptRecord     = errors.New("corrupt record")
	ErrStoreClosed       = errors.New("store is closed")
	ErrDatabaseDeleted   = errors.New("database has been deleted")
)

// Error carries a Kind alongside the operation that failed
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IOError wraps err as a KindIO failure of op
func IOError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// ContractError wraps err as a KindContractViolation failure of op
func ContractError(op string, err error) error {
	return &Error{Kind: KindContractViolation, Op: op, Err: err}
}

// ExistsError reports that op failed because the name is taken
func ExistsError(op, name string) error {
	return &Error{Kind: KindAlreadyExists, Op: op, Err: fmt.Errorf("%w: %q", ErrAlreadyExists, name)}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Errors without one are KindUnknown; nil is KindUnknown too.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Package failure defines the error taxonomy shared by the store, mapping
// and broadcast layers.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind string

const (
	KindConnection Kind = "connection failure"
	KindMapping    Kind = "mapping failure"
	KindQuery      Kind = "query failure"
	KindTransport  Kind = "transport failure"
)

// Sentinels for errors.Is checks, e.g. errors.Is(err, failure.Query)
var (
	Connection = &Error{Kind: KindConnection}
	Mapping    = &Error{Kind: KindMapping}
	Query      = &Error{Kind: KindQuery}
	Transport  = &Error{Kind: KindTransport}
)

// Error carries the failure kind plus the procedure, field or subscriber it
// originated from.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewConnection wraps err as a ConnectionFailure for op.
func NewConnection(op string, err error) error { return newError(KindConnection, op, err) }

// NewMapping wraps err as a MappingFailure naming the field or entity.
func NewMapping(op string, err error) error { return newError(KindMapping, op, err) }

// NewQuery wraps err as a QueryFailure naming the procedure.
func NewQuery(op string, err error) error { return newError(KindQuery, op, err) }

// NewTransport wraps err as a TransportFailure naming the subscriber.
func NewTransport(op string, err error) error { return newError(KindTransport, op, err) }

// KindOf returns the kind of the outermost failure in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

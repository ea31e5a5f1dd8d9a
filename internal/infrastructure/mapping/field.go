package mapping

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the type tag of a descriptor field
type Kind int

const (
	KindInt16 Kind = iota + 1
	KindInt32
	KindInt64
	KindString
	KindTime
	KindBool
	KindDecimal
	KindFloat
	KindComposite
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	case KindDecimal:
		return "decimal"
	case KindFloat:
		return "float"
	case KindComposite:
		return "composite"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Descriptor is the static field table of one entity type
type Descriptor[T Entity] struct {
	// Group names the table or procedure family the entity is written to
	Group  string
	Fields []Field[T]
}

// NewDescriptor builds a descriptor from an ordered field list
func NewDescriptor[T Entity](group string, fields ...Field[T]) *Descriptor[T] {
	return &Descriptor[T]{Group: group, Fields: fields}
}

// Field binds one semantic field of T to a storage column
type Field[T any] struct {
	Name   string
	Column string
	Kind   Kind

	options fieldOptions

	assign  func(*T, any)
	value   func(*T) any
	isZero  func(*T) bool
	nested  func(r *Registry, row Row, t *T, path string) error
	flatten func(r *Registry, t *T) ([]Param, error)
}

type fieldOptions struct {
	nullIfZero bool
}

// FieldOption tunes how a field is written
type FieldOption func(*fieldOptions)

// NullIfZero writes the NULL marker instead of the field's zero value
func NullIfZero() FieldOption {
	return func(o *fieldOptions) { o.nullIfZero = true }
}

func scalar[T any, V comparable](name, column string, kind Kind, ptr func(*T) *V, opts []FieldOption) Field[T] {
	f := Field[T]{Name: name, Column: column, Kind: kind}
	for _, opt := range opts {
		opt(&f.options)
	}
	f.assign = func(t *T, v any) { *ptr(t) = v.(V) }
	f.value = func(t *T) any { return *ptr(t) }
	f.isZero = func(t *T) bool {
		var zero V
		return *ptr(t) == zero
	}
	return f
}

// Int16 declares a 16-bit integer field
func Int16[T any](name, column string, ptr func(*T) *int16, opts ...FieldOption) Field[T] {
	return scalar(name, column, KindInt16, ptr, opts)
}

// Int32 declares a 32-bit integer field
func Int32[T any](name, column string, ptr func(*T) *int32, opts ...FieldOption) Field[T] {
	return scalar(name, column, KindInt32, ptr, opts)
}

// Int64 declares a 64-bit integer field
func Int64[T any](name, column string, ptr func(*T) *int64, opts ...FieldOption) Field[T] {
	return scalar(name, column, KindInt64, ptr, opts)
}

// String declares a text field
func String[T any](name, column string, ptr func(*T) *string, opts ...FieldOption) Field[T] {
	return scalar(name, column, KindString, ptr, opts)
}

// Time declares a timestamp field
func Time[T any](name, column string, ptr func(*T) *time.Time, opts ...FieldOption) Field[T] {
	f := scalar(name, column, KindTime, ptr, opts)
	f.isZero = func(t *T) bool { return ptr(t).IsZero() }
	return f
}

// Bool declares a boolean field
func Bool[T any](name, column string, ptr func(*T) *bool, opts ...FieldOption) Field[T] {
	return scalar(name, column, KindBool, ptr, opts)
}

// Decimal declares an exact decimal field. A nil value is always written as NULL.
func Decimal[T any](name, column string, ptr func(*T) **decimal.Decimal, opts ...FieldOption) Field[T] {
	f := scalar(name, column, KindDecimal, ptr, opts)
	f.value = func(t *T) any {
		if v := *ptr(t); v != nil {
			return v
		}
		return nil
	}
	return f
}

// Float declares a floating point field
func Float[T any](name, column string, ptr func(*T) *float64, opts ...FieldOption) Field[T] {
	return scalar(name, column, KindFloat, ptr, opts)
}

// Composite declares a nested entity filled from the same row as its parent,
// using N's own descriptor.
func Composite[T any, N Entity](name string, ptr func(*T) *N) Field[T] {
	return Field[T]{
		Name: name,
		Kind: KindComposite,
		nested: func(r *Registry, row Row, t *T, path string) error {
			d, err := Lookup[N](r)
			if err != nil {
				return err
			}
			return d.fill(r, row, ptr(t), path)
		},
		flatten: func(r *Registry, t *T) ([]Param, error) {
			d, err := Lookup[N](r)
			if err != nil {
				return nil, err
			}
			return d.params(r, ptr(t))
		},
	}
}

// Collection declares a one-to-many field. Row materialization and
// parameter building both skip it; loading it needs its own query.
func Collection[T any](name string) Field[T] {
	return Field[T]{Name: name, Kind: KindCollection}
}

package mapping

import (
	"errors"

	"flightboard-service/internal/domain/failure"
)

// Null marks an unset parameter. Kind lets the transport type the NULL.
type Null struct {
	Kind Kind
}

// Param is one named write parameter
type Param struct {
	Name  string
	Value any
}

// IsNull reports whether the parameter carries the NULL marker
func (p Param) IsNull() bool {
	_, ok := p.Value.(Null)
	return ok
}

// ParamSet is the parameter list of one entity, in descriptor order
type ParamSet struct {
	Group  string
	Params []Param
}

// Value returns the value of the named parameter
func (s ParamSet) Value(name string) (any, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Batch holds the parameter lists of several entities sharing one group
type Batch struct {
	Group string
	Rows  [][]Param
}

// BuildParams turns entity into its write parameters
func BuildParams[T Entity](r *Registry, entity *T) (ParamSet, error) {
	d, err := Lookup[T](r)
	if err != nil {
		return ParamSet{}, err
	}
	if entity == nil {
		return ParamSet{}, failure.NewMapping(d.Group, errors.New("nil entity"))
	}
	params, err := d.params(r, entity)
	if err != nil {
		return ParamSet{}, err
	}
	return ParamSet{Group: d.Group, Params: params}, nil
}

// BuildBatch turns several entities into parameter lists for a bulk write
func BuildBatch[T Entity](r *Registry, entities []T) (Batch, error) {
	d, err := Lookup[T](r)
	if err != nil {
		return Batch{}, err
	}
	batch := Batch{Group: d.Group, Rows: make([][]Param, 0, len(entities))}
	for i := range entities {
		params, err := d.params(r, &entities[i])
		if err != nil {
			return Batch{}, err
		}
		batch.Rows = append(batch.Rows, params)
	}
	return batch, nil
}

func (d *Descriptor[T]) params(r *Registry, t *T) ([]Param, error) {
	params := make([]Param, 0, len(d.Fields))
	for _, f := range d.Fields {
		switch f.Kind {
		case KindCollection:
			continue
		case KindComposite:
			nested, err := f.flatten(r, t)
			if err != nil {
				return nil, failure.NewMapping(f.Name, err)
			}
			params = append(params, nested...)
		default:
			params = append(params, Param{Name: f.Column, Value: f.paramValue(t)})
		}
	}
	return params, nil
}

func (f Field[T]) paramValue(t *T) any {
	if f.options.nullIfZero && f.isZero(t) {
		return Null{Kind: f.Kind}
	}
	v := f.value(t)
	if v == nil {
		return Null{Kind: f.Kind}
	}
	return v
}

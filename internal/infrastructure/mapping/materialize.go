package mapping

import (
	"flightboard-service/internal/domain/failure"
)

// Materialize builds a new T from row. Fields whose column is missing or
// NULL keep their zero value. On error the partially filled instance is
// discarded.
func Materialize[T Entity](r *Registry, row Row) (*T, error) {
	d, err := Lookup[T](r)
	if err != nil {
		return nil, err
	}
	var t T
	if err := d.fill(r, row, &t, ""); err != nil {
		return nil, err
	}
	return &t, nil
}

// MaterializeAll drains cursor into a slice of T. It does not close the cursor.
func MaterializeAll[T Entity](r *Registry, cursor Cursor) ([]T, error) {
	d, err := Lookup[T](r)
	if err != nil {
		return nil, err
	}
	rr, err := newRowReader(cursor)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0)
	for cursor.Next() {
		row, err := rr.read()
		if err != nil {
			return nil, err
		}
		var t T
		if err := d.fill(r, row, &t, ""); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (d *Descriptor[T]) fill(r *Registry, row Row, t *T, path string) error {
	for _, f := range d.Fields {
		name := fieldPath(path, f.Name)
		switch f.Kind {
		case KindCollection:
			continue
		case KindComposite:
			if err := f.nested(r, row, t, name); err != nil {
				return err
			}
		default:
			raw, ok := row.Lookup(f.Column)
			if !ok || raw == nil {
				continue
			}
			v, err := convert(f.Kind, raw)
			if err != nil {
				return failure.NewMapping(name, err)
			}
			f.assign(t, v)
		}
	}
	return nil
}

func fieldPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

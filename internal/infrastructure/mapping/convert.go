package mapping

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedConversion marks a cell type that the conversion table does
// not handle for the field's kind. It points at a descriptor that disagrees
// with the storage schema.
var ErrUnsupportedConversion = errors.New("unsupported conversion")

// timeLayouts are tried in order when a timestamp arrives as text
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

func unsupported(raw any, kind Kind) error {
	return fmt.Errorf("%w: %T to %s", ErrUnsupportedConversion, raw, kind)
}

// convert maps a non-NULL cell value to the Go type of kind
func convert(kind Kind, raw any) (any, error) {
	switch kind {
	case KindInt16:
		n, err := toInt64(raw, kind)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("value %d overflows int16", n)
		}
		return int16(n), nil
	case KindInt32:
		n, err := toInt64(raw, kind)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows int32", n)
		}
		return int32(n), nil
	case KindInt64:
		return toInt64(raw, kind)
	case KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case KindTime:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			return parseTime(v)
		case []byte:
			return parseTime(string(v))
		}
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
	case KindDecimal:
		return toDecimal(raw)
	case KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		}
	}
	return nil, unsupported(raw, kind)
}

func toInt64(raw any, kind Kind) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", v)
		}
		return int64(v), nil
	}
	return 0, unsupported(raw, kind)
}

func toDecimal(raw any) (*decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return &v, nil
	case *decimal.Decimal:
		d := *v
		return &d, nil
	case int64:
		d := decimal.NewFromInt(v)
		return &d, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %v is not a finite decimal", v)
		}
		d := decimal.NewFromFloat(v)
		return &d, nil
	case string:
		return parseDecimal(v)
	case []byte:
		return parseDecimal(string(v))
	}
	return nil, unsupported(raw, KindDecimal)
}

func parseDecimal(s string) (*decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return &d, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

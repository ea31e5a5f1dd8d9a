package persistence

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"flightboard-service/internal/infrastructure/mapping"
)

// TransportType is the store-side type a parameter is sent as
type TransportType int

const (
	TransportInteger TransportType = iota + 1
	TransportText
	TransportTimestamp
	TransportBoolean
	TransportDecimal
)

func (t TransportType) String() string {
	switch t {
	case TransportInteger:
		return "integer"
	case TransportText:
		return "text"
	case TransportTimestamp:
		return "timestamp"
	case TransportBoolean:
		return "boolean"
	case TransportDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// ErrUnknownParamType is returned for a parameter value outside the transport table
var ErrUnknownParamType = errors.New("no transport type for parameter")

// decimalScale is the number of fractional digits sent for exact decimals
const decimalScale = 9

// BoundParam is a parameter ready for the driver. Value is nil for NULL.
type BoundParam struct {
	Name  string
	Type  TransportType
	Value any
}

// bindParams infers the transport type of every parameter
func bindParams(params []mapping.Param) ([]BoundParam, error) {
	bound := make([]BoundParam, 0, len(params))
	for _, p := range params {
		typ, value, err := inferTransport(p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		bound = append(bound, BoundParam{Name: p.Name, Type: typ, Value: value})
	}
	return bound, nil
}

func inferTransport(v any) (TransportType, any, error) {
	switch value := v.(type) {
	case mapping.Null:
		typ, err := transportForKind(value.Kind)
		return typ, nil, err
	case int:
		return TransportInteger, int64(value), nil
	case int8:
		return TransportInteger, int64(value), nil
	case int16:
		return TransportInteger, int64(value), nil
	case int32:
		return TransportInteger, int64(value), nil
	case int64:
		return TransportInteger, value, nil
	case string:
		return TransportText, value, nil
	case time.Time:
		return TransportTimestamp, value, nil
	case bool:
		return TransportBoolean, value, nil
	case *decimal.Decimal:
		if value == nil {
			return TransportDecimal, nil, nil
		}
		return TransportDecimal, value.StringFixed(decimalScale), nil
	case decimal.Decimal:
		return TransportDecimal, value.StringFixed(decimalScale), nil
	case float64:
		return TransportDecimal, strconv.FormatFloat(value, 'f', -1, 64), nil
	}
	return 0, nil, fmt.Errorf("%w: %T", ErrUnknownParamType, v)
}

func transportForKind(kind mapping.Kind) (TransportType, error) {
	switch kind {
	case mapping.KindInt16, mapping.KindInt32, mapping.KindInt64:
		return TransportInteger, nil
	case mapping.KindString:
		return TransportText, nil
	case mapping.KindTime:
		return TransportTimestamp, nil
	case mapping.KindBool:
		return TransportBoolean, nil
	case mapping.KindDecimal, mapping.KindFloat:
		return TransportDecimal, nil
	}
	return 0, fmt.Errorf("%w: NULL of kind %s", ErrUnknownParamType, kind)
}

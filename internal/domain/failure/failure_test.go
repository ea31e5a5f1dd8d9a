package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("save flight: %w", NewQuery("SaveNewOrUpdateFlight", cause))

	assert.Equal(t, true, errors.Is(err, Query))
	assert.Equal(t, false, errors.Is(err, Connection))
	assert.Equal(t, true, errors.Is(err, cause))
	assert.Equal(t, true, errors.Is(err, &Error{Kind: KindQuery, Op: "SaveNewOrUpdateFlight"}))
	assert.Equal(t, false, errors.Is(err, &Error{Kind: KindQuery, Op: "GetAllAirports"}))
	assert.Equal(t, KindQuery, KindOf(err))
}

func TestErrorMessage(t *testing.T) {
	err := NewMapping("DelayMinutes", errors.New("cannot convert string to int32"))
	assert.Equal(t, "mapping failure: DelayMinutes: cannot convert string to int32", err.Error())
	assert.Equal(t, "connection failure", Connection.Error())
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// ParseFilters decodes the JSON wire form of a filter specification: a list
// of clause objects, or a single clause object. Empty input yields nil.
// Numbers are kept as json.Number so integer values keep their precision.
func ParseFilters(data []byte) ([]types.Filter, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var f types.Filter
		if err := decodeJSON(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidFilter, err)
		}
		return []types.Filter{f}, nil
	}
	var spec []types.Filter
	if err := decodeJSON(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidFilter, err)
	}
	return spec, nil
}

// ParseSort decodes the JSON wire form of a sort specification: a list of
// {"field", "direction", "nulls"} objects, or a single such object.
func ParseSort(data []byte) ([]types.SortClause, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var s types.SortClause
		if err := decodeJSON(data, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidSort, err)
		}
		return []types.SortClause{s}, nil
	}
	var spec []types.SortClause
	if err := decodeJSON(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidSort, err)
	}
	return spec, nil
}

// decodeJSON decodes exactly one JSON value from data into v.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

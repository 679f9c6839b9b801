package output

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// ValidateJQ checks that expr parses as a jq program.
func ValidateJQ(expr string) error {
	if _, err := gojq.Parse(expr); err != nil {
		return ErrUsageHint("Invalid --jq expression", err.Error())
	}
	return nil
}

// FilterJQ runs expr against data and returns every emitted value.
func FilterJQ(expr string, data any) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint("Invalid --jq expression", err.Error())
	}

	input, err := toJQInput(data)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if haltErr, ok := err.(*gojq.HaltError); ok && haltErr.Value() == nil {
				break
			}
			return nil, ErrUsageHint("jq evaluation failed", err.Error())
		}
		results = append(results, v)
	}
	return results, nil
}

// toJQInput converts data into the plain map/slice/float64 values gojq expects.
func toJQInput(data any) (any, error) {
	var b []byte
	switch d := data.(type) {
	case json.RawMessage:
		b = d
	default:
		var err error
		b, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding data for jq: %w", err)
		}
	}
	if len(b) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decoding data for jq: %w", err)
	}
	return v, nil
}

// writeJQ prints one result per line: strings raw, everything else as compact JSON.
func (w *Writer) writeJQ(data any) error {
	results, err := FilterJQ(w.opts.JQ, data)
	if err != nil {
		return err
	}
	for _, v := range results {
		if s, ok := v.(string); ok {
			if _, err := fmt.Fprintln(w.opts.Writer, s); err != nil {
				return err
			}
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w.opts.Writer, string(b)); err != nil {
			return err
		}
	}
	return nil
}

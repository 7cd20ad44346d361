package cache

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeRows serializes scanned rows, keyed by column, with msgpack.
// Values are expected in their database form: integers, floats, strings,
// byte slices, booleans, times and nil.
func EncodeRows(rows []map[string]any) ([]byte, error) {
	b, err := msgpack.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("cache: encoding rows: %w", err)
	}
	return b, nil
}

// DecodeRows reverses EncodeRows. Integers come back as int64 and floats
// as float64, whatever width msgpack stored them with.
func DecodeRows(b []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := msgpack.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("cache: decoding rows: %w", err)
	}
	for _, row := range rows {
		for col, v := range row {
			row[col] = widen(v)
		}
	}
	return rows, nil
}

func widen(v any) any {
	switch v := v.(type) {
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

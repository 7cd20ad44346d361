package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rvohealth/dream-sub006/schema/field"
)

// Codec converts column values between their driver and in-memory forms.
type Codec interface {
	// Encode converts an in-memory value to a driver argument.
	Encode(f *field.Descriptor, v any) (any, error)
	// Decode converts a scanned driver value to its in-memory form.
	Decode(f *field.Descriptor, v any) (any, error)
}

// DefaultCodec maps driver values onto Go types by field type: bool,
// time.Time, uuid.UUID, json.RawMessage, []byte, string, int, int64 and
// float64. NULL decodes to nil.
type DefaultCodec struct{}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Encode implements Codec.
func (DefaultCodec) Encode(f *field.Descriptor, v any) (any, error) {
	if v == nil || f == nil {
		return v, nil
	}
	switch f.Type {
	case field.TypeJSON:
		switch v := v.(type) {
		case json.RawMessage:
			return []byte(v), nil
		case []byte, string:
			return v, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("schema: encoding %s: %w", f.Name, err)
		}
		return b, nil
	case field.TypeUUID:
		if u, ok := v.(uuid.UUID); ok {
			return u.String(), nil
		}
	}
	return v, nil
}

// Decode implements Codec.
func (DefaultCodec) Decode(f *field.Descriptor, v any) (any, error) {
	if v == nil || f == nil {
		return v, nil
	}
	switch f.Type {
	case field.TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case []byte:
			return strconv.ParseBool(string(v))
		case string:
			return strconv.ParseBool(v)
		}
	case field.TypeTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case []byte:
			return parseTime(string(v))
		case string:
			return parseTime(v)
		}
	case field.TypeUUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(v)
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			return uuid.ParseBytes(v)
		}
	case field.TypeJSON:
		switch v := v.(type) {
		case []byte:
			return json.RawMessage(append([]byte(nil), v...)), nil
		case string:
			return json.RawMessage(v), nil
		}
	case field.TypeBytes:
		if b, ok := v.([]byte); ok {
			return append([]byte(nil), b...), nil
		}
	case field.TypeString, field.TypeEnum:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case field.TypeInt:
		n, err := decodeInt(v)
		return int(n), err
	case field.TypeInt64:
		return decodeInt(v)
	case field.TypeFloat64:
		switch v := v.(type) {
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		case string:
			return strconv.ParseFloat(v, 64)
		}
		if n, ok := field.ToFloat(v); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("schema: cannot decode %T into %s field %s", v, f.Type, f.Name)
}

func decodeInt(v any) (int64, error) {
	switch v := v.(type) {
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	case float64:
		return int64(v), nil
	}
	if n, ok := toInt64(v); ok {
		return n, nil
	}
	return 0, fmt.Errorf("schema: cannot decode %T as integer", v)
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

package sqlgraph

import (
	"bytes"
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/rvohealth/dream-sub006/schema"
	"github.com/rvohealth/dream-sub006/schema/field"
	"github.com/rvohealth/dream-sub006/schema/where"
)

// SortRecords orders records in place by terms followed by the primary
// key, the order the compiled queries request. NULL sorts before any value
// ascending and after any value descending.
func SortRecords(recs []*schema.Record, terms []where.Order) {
	slices.SortStableFunc(recs, func(a, b *schema.Record) int {
		for _, t := range terms {
			n := CompareValues(a.Get(t.Column), b.Get(t.Column))
			if t.Desc {
				n = -n
			}
			if n != 0 {
				return n
			}
		}
		return CompareValues(a.ID(), b.ID())
	})
}

// CompareValues compares two column values.
func CompareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv)
		}
	}
	if af, ok := field.ToFloat(a); ok {
		if bf, ok := field.ToFloat(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	if s, ok := a.(interface{ String() string }); ok {
		if t, ok := b.(interface{ String() string }); ok {
			return strings.Compare(s.String(), t.String())
		}
	}
	return 0
}

package sql

import (
	"fmt"
)

// ScanMaps reads all remaining rows into column-name keyed maps and
// closes the rows. []byte values are returned as copies owned by the
// caller.
func ScanMaps(rows ColumnScanner) ([]map[string]any, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sql/scan: failed getting column names: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sql/scan: failed scanning rows: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ScanInt64 reads the first column of the first row as an int64. It is
// used for COUNT and MAX style queries.
func ScanInt64(rows ColumnScanner) (int64, error) {
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("sql/scan: no rows returned")
	}
	var n NullInt64
	if err := rows.Scan(&n); err != nil {
		return 0, fmt.Errorf("sql/scan: failed scanning integer: %w", err)
	}
	return n.Int64, rows.Err()
}

// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Row is one result row: column names in result-descriptor order and the
// matching values.
type Row struct {
	Columns []string
	Values  []any
}

// MarshalJSON encodes the row as a JSON object whose keys keep the column
// order returned by the database.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var val any
		if i < len(r.Values) {
			val = jsonValue(r.Values[i])
		}
		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into a Row, keeping key order. Numbers
// decode as json.Number.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row: expected object, got %v", tok)
	}
	r.Columns, r.Values = nil, nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("row: expected key, got %v", tok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("row: column %q: %w", key, err)
		}
		r.Columns = append(r.Columns, key)
		r.Values = append(r.Values, val)
	}
	_, err = dec.Token()
	return err
}

// jsonValue converts pgx values that have no useful JSON form.
func jsonValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		// pgx decodes uuid columns as [16]byte
		return uuid.UUID(val).String()
	case []byte:
		if len(val) == 16 {
			if id, err := uuid.FromBytes(val); err == nil {
				return id.String()
			}
		}
		return fmt.Sprintf("\\x%x", val)
	default:
		return val
	}
}

// FormatValue renders a column value for terminal output.
func FormatValue(v any) string {
	switch val := jsonValue(v).(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// CollectRows drains rows into Row values. A result without a descriptor
// yields an empty, non-nil slice.
func CollectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	out := []Row{}
	for rows.Next() {
		if len(cols) == 0 {
			continue
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, Row{Columns: cols, Values: vals})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

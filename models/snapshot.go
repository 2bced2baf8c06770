package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Field is one column of a row snapshot.
type Field struct {
	Name  string
	Value interface{}
}

// Snapshot is the full column set of a row in table column order.
//
// Values are held in canonical JSON form: nil, string, bool or json.Number.
// A nil Snapshot means "absent" and is stored as SQL NULL; an empty,
// non-nil Snapshot is stored as {}.
type Snapshot []Field

// NewSnapshot zips columns with values. Both slices must be the same length.
func NewSnapshot(columns []string, values []interface{}) (Snapshot, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("snapshot has %d columns but %d values", len(columns), len(values))
	}
	s := make(Snapshot, 0, len(columns))
	for i, col := range columns {
		v, err := canonicalValue(values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		s = append(s, Field{Name: col, Value: v})
	}
	return s, nil
}

// Get returns the value for name and whether the column is present.
func (s Snapshot) Get(name string) (interface{}, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Columns returns the column names in order.
func (s Snapshot) Columns() []string {
	cols := make([]string, len(s))
	for i, f := range s {
		cols[i] = f.Name
	}
	return cols
}

// MarshalJSON writes an object whose keys keep the snapshot order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object preserving key order. Numbers decode as
// json.Number so they compare equal to the values that were written.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("snapshot: expected object, got %v", tok)
	}

	out := Snapshot{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("snapshot: expected key, got %v", keyTok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("snapshot: column %s: %w", key, err)
		}
		out = append(out, Field{Name: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	*s = out
	return nil
}

// Value implements driver.Valuer.
func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *Snapshot) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Snapshot", src)
	}
}

func canonicalValue(v interface{}) (interface{}, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		dv, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		v = dv
	}

	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case *string:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case []byte:
		return string(x), nil
	case bool:
		return x, nil
	case int:
		return json.Number(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(x, 10)), nil
	case *int:
		if x == nil {
			return nil, nil
		}
		return json.Number(strconv.Itoa(*x)), nil
	case float64:
		return json.Number(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case json.Number:
		return x, nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot value type %T", v)
	}
}

package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one dataset record. Keys keep the order they had on the wire so
// that tables show columns the way the backend produced them.
type Row struct {
	Keys   []string
	Values map[string]any
}

// Get returns the value stored under key.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.Values[key]
	return v, ok
}

func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("dataset row must be a JSON object, got %v", tok)
	}

	r.Keys = r.Keys[:0]
	r.Values = make(map[string]any)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("row field %q: %w", key, err)
		}
		if _, dup := r.Values[key]; !dup {
			r.Keys = append(r.Keys, key)
		}
		r.Values[key] = v
	}

	_, err = dec.Token()
	return err
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeDataset parses the "data" member of a result entry. A missing or
// null member yields no rows.
func decodeDataset(raw json.RawMessage) ([]Row, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

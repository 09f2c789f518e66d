package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is a JSON object that remembers the key order of the source
// document. Roster CSV columns are derived from this order, so the
// usual map-based decoding would scramble them. Nested objects decode
// as *Object, arrays as []interface{}, numbers as json.Number.
type Object struct {
	keys   []string
	values map[string]interface{}
}

// Keys returns the object's keys in document order.
func (o *Object) Keys() []string { return o.keys }

// Get returns the value stored under key.
func (o *Object) Get(key string) (interface{}, bool) {
	v, ok := o.values[key]
	return v, ok
}

// GetString returns the trimmed string value under key, or "" when the
// key is absent or not a string.
func (o *Object) GetString(key string) string {
	v, ok := o.values[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (o *Object) Len() int { return len(o.keys) }

func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	decoded, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*o = *decoded
	return nil
}

// decodeObject consumes the members of an object whose opening brace
// has already been read.
func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := &Object{values: make(map[string]interface{})}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if _, dup := obj.values[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = value
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool or nil
		return tok, nil
	}
	switch delim {
	case '{':
		return decodeObject(dec)
	case '[':
		var arr []interface{}
		for dec.More() {
			item, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}

// MarshalJSON writes the object back out preserving key order. HTML
// characters are not escaped so URLs survive a round trip through CSV
// cells intact.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeInline(enc, &buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeInline(enc, &buf, o.values[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeInline writes v without the trailing newline Encode appends.
func encodeInline(enc *json.Encoder, buf *bytes.Buffer, v interface{}) error {
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}

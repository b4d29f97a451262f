// Package table turns Feature Server features into CSV-ready rows.
//
// A feature arrives as a nested JSON object:
//
//	{"attributes": {"OBJECTID": 1, "ISSUEDATE": 1577836800000}, "geometry": {"x": 1, "y": 2}}
//
// Flatten walks it in source key order and produces dotted keys
// ("geometry.x"), stripping the "attributes." prefix so attribute fields keep
// their service names. New assembles flattened records of one page into a
// Table whose column set is the ordered union of the records' keys.
package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AttributesPrefix is removed from every flattened key.
const AttributesPrefix = "attributes."

// ErrNotObject is returned when a feature is not a JSON object.
var ErrNotObject = errors.New("feature is not a JSON object")

// Field is one flattened key/value pair of a feature.
type Field struct {
	Key string
	// Value is string, json.Number, bool, nil, or compact JSON text for arrays.
	Value any
}

// Record is a flattened feature in source key order.
type Record []Field

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Flatten decodes one feature into a Record.
func Flatten(raw json.RawMessage) (Record, error) {
	var rec Record
	if err := flattenObject(raw, "", &rec); err != nil {
		return nil, err
	}
	for i := range rec {
		rec[i].Key = strings.TrimPrefix(rec[i].Key, AttributesPrefix)
	}
	return rec, nil
}

func flattenObject(raw []byte, prefix string, rec *Record) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("read value of %q: %w", prefix+key, err)
		}
		val = bytes.TrimSpace(val)
		name := prefix + key

		switch {
		case len(val) > 0 && val[0] == '{':
			if err := flattenObject(val, name+".", rec); err != nil {
				return err
			}
		case len(val) > 0 && val[0] == '[':
			var buf bytes.Buffer
			if err := json.Compact(&buf, val); err != nil {
				return fmt.Errorf("compact %q: %w", name, err)
			}
			rec.set(name, buf.String())
		default:
			v, err := decodeScalar(val)
			if err != nil {
				return fmt.Errorf("decode %q: %w", name, err)
			}
			rec.set(name, v)
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return nil
}

// set appends key, replacing an earlier value with the same key.
func (r *Record) set(key string, v any) {
	for i := range *r {
		if (*r)[i].Key == key {
			(*r)[i].Value = v
			return
		}
	}
	*r = append(*r, Field{Key: key, Value: v})
}

func decodeScalar(val []byte) (any, error) {
	if len(val) == 0 {
		return nil, errors.New("empty value")
	}
	switch val[0] {
	case 'n':
		return nil, nil
	case 't', 'f':
		var b bool
		err := json.Unmarshal(val, &b)
		return b, err
	case '"':
		var s string
		err := json.Unmarshal(val, &s)
		return s, err
	default:
		return json.Number(val), nil
	}
}

package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"
)

// maxDepth bounds recursion over untrusted payloads. Deeper documents are
// rejected by Decode and treated as untabular by Normalize.
const maxDepth = 256

var (
	errTrailingData = errors.New("unexpected data after JSON value")
	errTooDeep      = errors.New("JSON nesting exceeds maximum depth")
)

// Object is a JSON object that remembers the order its keys were first seen.
//
// Setting an existing key replaces the value but keeps the original
// position, which matches how duplicate keys in a document collapse.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores value under key.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// MarshalJSON writes the object with its keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeJSON(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := encodeJSON(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeJSON marshals v without HTML escaping so cell text stays readable.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses a single JSON document into an ordered value tree made of
// *Object, []any, string, json.Number, bool and nil.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (any, error) {
	if depth > maxDepth {
		return nil, errTooDeep
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, not string", kt)
				}
				v, err := decodeValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil

		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)

	default:
		// string, json.Number, bool or nil
		return t, nil
	}
}

// DecodeLenient parses text that a language model produced as JSON.
//
// Strict JSON is tried first. Failing that, a surrounding Markdown code
// fence is removed and comments and trailing commas are stripped. The
// boolean reports whether any attempt produced a value.
func DecodeLenient(text string) (any, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, false
	}
	if v, err := Decode([]byte(s)); err == nil {
		return v, true
	}

	s = stripCodeFence(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	if v, err := Decode([]byte(s)); err == nil {
		return v, true
	}
	if v, err := Decode(jsonc.ToJSON([]byte(s))); err == nil {
		return v, true
	}
	return nil, false
}

// stripCodeFence removes a ```lang ... ``` wrapper.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return ""
	}
	s = s[nl+1:]
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// Canonicalize converts Go values into the tree shape Normalize walks.
//
// Values that already belong to the tree pass through. Raw JSON bytes are
// decoded. Anything else goes through encoding/json, so Go maps come out
// with sorted keys and structs keep their field order.
func Canonicalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, json.Number, *Object:
		return x
	case json.RawMessage:
		return decodeBytes(x)
	case []byte:
		return decodeBytes(x)
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = Canonicalize(el)
		}
		return out
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out, err := Decode(b)
	if err != nil {
		return nil
	}
	return out
}

func decodeBytes(b []byte) any {
	if v, err := Decode(b); err == nil {
		return v
	}
	return string(b)
}

// Stringify renders a tree value as cell text. Strings are kept as is, null
// becomes empty and everything else is compact JSON.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	}
	b, err := encodeJSON(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

package tabular

import (
	"regexp"
	"strings"
)

// Shape is the result of classifying a payload. It is one of RecordSet,
// ItemList, PlainObject, RawString or NoMatch.
type Shape interface {
	isShape()
}

// RecordSet is a list of objects, one row each.
type RecordSet struct {
	Records []*Object
}

// ItemList is a list of {name, value} objects collapsed into a single row.
type ItemList struct {
	Items []*Object
}

// PlainObject is an object (or parsed key-value text) used as one row.
type PlainObject struct {
	Fields *Object
}

// RawString is text with no recognizable structure.
type RawString struct {
	Text string
}

// NoMatch means no table can be derived.
type NoMatch struct{}

func (RecordSet) isShape()   {}
func (ItemList) isShape()    {}
func (PlainObject) isShape() {}
func (RawString) isShape()   {}
func (NoMatch) isShape()     {}

// Well-known array keys, in priority order.
var (
	recordKeys = []string{"extracted_records", "records"}
	itemKeys   = []string{"extracted_items", "items"}
)

var kvLine = regexp.MustCompile(`^([A-Za-z0-9 _\-/()]+?)\s*[:=]\s*(.+)$`)

// Classify decides which table shape v has. The first matching rule wins:
// text (JSON, key-value lines, raw), arrays (record set, first usable
// element), objects (record keys, item keys, nested search, own fields).
func Classify(v any) Shape {
	return classify(Canonicalize(v), 0, false)
}

// classify walks the tree. nested is set while searching an object's
// children: there a string only counts when it holds embedded JSON, so a
// free-text field such as a summary cannot shadow its parent's fields.
func classify(v any, depth int, nested bool) Shape {
	if depth > maxDepth {
		return NoMatch{}
	}

	switch x := v.(type) {
	case string:
		return classifyText(x, depth, nested)
	case []any:
		return classifyArray(x, depth, nested)
	case *Object:
		return classifyObject(x, depth)
	default:
		return NoMatch{}
	}
}

func classifyText(s string, depth int, nested bool) Shape {
	if parsed, ok := DecodeLenient(s); ok {
		if sh := classify(parsed, depth+1, nested); !isNoMatch(sh) {
			return sh
		}
	}
	if nested {
		return NoMatch{}
	}
	if fields := parseKeyValues(s); fields != nil {
		return PlainObject{Fields: fields}
	}
	return RawString{Text: s}
}

// parseKeyValues collects "key: value" or "key = value" lines. Returns nil
// when no line matches a usable key.
func parseKeyValues(s string) *Object {
	fields := NewObject()
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := kvLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		if IsReserved(key) {
			continue
		}
		fields.Set(key, strings.TrimSpace(m[2]))
	}
	if fields.Len() == 0 {
		return nil
	}
	return fields
}

func classifyArray(arr []any, depth int, nested bool) Shape {
	if records, ok := allObjects(arr); ok {
		return RecordSet{Records: records}
	}
	for _, el := range arr {
		if sh := classify(el, depth+1, nested); !isNoMatch(sh) {
			return sh
		}
	}
	return NoMatch{}
}

func classifyObject(obj *Object, depth int) Shape {
	for _, key := range recordKeys {
		if objs := objectElements(obj, key); len(objs) > 0 {
			return RecordSet{Records: objs}
		}
	}
	for _, key := range itemKeys {
		if objs := objectElements(obj, key); len(objs) > 0 {
			return ItemList{Items: objs}
		}
	}

	for _, key := range obj.Keys() {
		child, _ := obj.Get(key)
		if sh := classify(child, depth+1, true); !isNoMatch(sh) {
			return sh
		}
	}

	for _, key := range obj.Keys() {
		if !IsReserved(key) {
			return PlainObject{Fields: obj}
		}
	}
	return NoMatch{}
}

// allObjects reports whether arr is non-empty and holds only objects.
func allObjects(arr []any) ([]*Object, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	out := make([]*Object, 0, len(arr))
	for _, el := range arr {
		o, ok := el.(*Object)
		if !ok {
			return nil, false
		}
		out = append(out, o)
	}
	return out, true
}

// objectElements returns the object elements of the array stored at key.
// Non-object elements are skipped.
func objectElements(obj *Object, key string) []*Object {
	v, ok := obj.Get(key)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []*Object
	for _, el := range arr {
		if o, ok := el.(*Object); ok {
			out = append(out, o)
		}
	}
	return out
}

func isNoMatch(s Shape) bool {
	_, ok := s.(NoMatch)
	return ok
}

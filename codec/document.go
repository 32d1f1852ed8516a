package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Jeffail/gabs"
)

var (
	ErrFieldMissing = errors.New("codec: field missing")
	ErrFieldType    = errors.New("codec: field has unexpected type")
)

// Document is parsed wire text that can be navigated field by field. The
// original bytes are kept so the whole message can still be decoded into a
// typed target once the caller has decided it wants to.
type Document struct {
	codec  Codec
	raw    []byte
	root   *gabs.Container
	fields map[string]*gabs.Container
}

func newDocument(c Codec, raw []byte, root *gabs.Container) (*Document, error) {
	fields, err := root.ChildrenMap()
	if err != nil {
		return nil, fmt.Errorf("%w: top level is not an object", ErrNotDocument)
	}
	return &Document{codec: c, raw: raw, root: root, fields: fields}, nil
}

// Has reports whether field is present, including when its value is null.
func (d *Document) Has(field string) bool {
	_, ok := d.fields[field]
	return ok
}

// Keys returns the top-level field names in sorted order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the generic value of field as produced by the codec's parser.
func (d *Document) Value(field string) (any, bool) {
	c, ok := d.fields[field]
	if !ok {
		return nil, false
	}
	return c.Data(), true
}

// Int reads an integer field. Floats are accepted only when they carry an
// integral value; anything else fails with ErrFieldType.
func (d *Document) Int(field string) (int, error) {
	c, ok := d.fields[field]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrFieldMissing, field)
	}
	n, ok := toInt(c.Data())
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T, want integer", ErrFieldType, field, c.Data())
	}
	return n, nil
}

// String reads a string field.
func (d *Document) String(field string) (string, error) {
	c, ok := d.fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrFieldMissing, field)
	}
	s, ok := c.Data().(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrFieldType, field, c.Data())
	}
	return s, nil
}

// Elements returns the items of an array field in order.
func (d *Document) Elements(field string) ([]any, error) {
	c, ok := d.fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldMissing, field)
	}
	if c.Data() == nil {
		return nil, nil
	}
	items, ok := c.Data().([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want array", ErrFieldType, field, c.Data())
	}
	return items, nil
}

// Decode decodes the full document into v using the codec it was parsed with.
func (d *Document) Decode(v any) error {
	return d.codec.Decode(d.raw, v)
}

// DecodeField decodes the value of field alone into v. Only the exact key is
// read, so keys that differ in case or appear elsewhere in the document never
// reach v.
func (d *Document) DecodeField(field string, v any) error {
	c, ok := d.fields[field]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldMissing, field)
	}
	data, err := d.codec.Encode(c.Data())
	if err != nil {
		return fmt.Errorf("codec: re-encode %q: %w", field, err)
	}
	if err := d.codec.Decode(data, v); err != nil {
		return fmt.Errorf("codec: decode %q: %w", field, err)
	}
	return nil
}

func (d *Document) Codec() Codec {
	return d.codec
}

func (d *Document) Raw() []byte {
	return d.raw
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

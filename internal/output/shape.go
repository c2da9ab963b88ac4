package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidOutput is returned when the backend output is not valid JSON.
var ErrInvalidOutput = errors.New("output: invalid json")

// Shape is the structural class of a raw backend output. It is one of
// Scalar, Sequence or Keyed.
type Shape interface {
	shape()
}

// Scalar is a single value, usually one resource reference.
type Scalar struct {
	Value json.RawMessage
}

// Sequence is an ordered list of values.
type Sequence struct {
	Items []json.RawMessage
}

// Keyed is a JSON object. Keys keeps document order.
type Keyed struct {
	Keys   []string
	Values map[string]json.RawMessage
}

func (Scalar) shape()   {}
func (Sequence) shape() {}
func (Keyed) shape()    {}

// Classify inspects raw once and returns its shape. An empty payload or JSON
// null is an empty Sequence: the backend produced nothing to show.
func Classify(raw json.RawMessage) (Shape, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Sequence{}, nil
	}
	if !json.Valid(trimmed) {
		return nil, ErrInvalidOutput
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		return Sequence{Items: items}, nil
	case '{':
		return decodeKeyed(trimmed)
	default:
		return Scalar{Value: trimmed}, nil
	}
}

// decodeKeyed walks the object token by token so the key order of the
// document survives. A repeated key keeps its first position and last value.
func decodeKeyed(raw []byte) (Keyed, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return Keyed{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	out := Keyed{Values: map[string]json.RawMessage{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Keyed{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		key, ok := tok.(string)
		if !ok {
			return Keyed{}, fmt.Errorf("%w: unexpected token %v", ErrInvalidOutput, tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Keyed{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		if _, seen := out.Values[key]; !seen {
			out.Keys = append(out.Keys, key)
		}
		out.Values[key] = value
	}
	return out, nil
}

// Flatten turns a shape into the ordered list of elements to render.
// Keyed outputs contribute only their resource-bearing values (strings,
// including those nested in arrays and objects) in key order.
func Flatten(s Shape) []json.RawMessage {
	switch v := s.(type) {
	case Scalar:
		return []json.RawMessage{v.Value}
	case Sequence:
		return v.Items
	case Keyed:
		var out []json.RawMessage
		for _, key := range v.Keys {
			out = appendResources(out, v.Values[key])
		}
		return out
	default:
		panic(fmt.Sprintf("output: unhandled shape %T", s))
	}
}

func appendResources(dst []json.RawMessage, raw json.RawMessage) []json.RawMessage {
	shape, err := Classify(raw)
	if err != nil {
		return dst
	}
	switch v := shape.(type) {
	case Scalar:
		if isString(v.Value) {
			dst = append(dst, v.Value)
		}
	case Sequence:
		for _, item := range v.Items {
			dst = appendResources(dst, item)
		}
	case Keyed:
		for _, key := range v.Keys {
			dst = appendResources(dst, v.Values[key])
		}
	}
	return dst
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"expressionpanel/internal/output"
)

// InputKind describes how a parameter value is parsed and validated.
type InputKind string

const (
	InputImage   InputKind = "image"
	InputNumber  InputKind = "number"
	InputInteger InputKind = "integer"
	InputEnum    InputKind = "enum"
)

// Input describes one parameter accepted by the expression editor model.
type Input struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Info    string    `json:"info,omitempty"`
	Kind    InputKind `json:"kind"`
	Default any       `json:"default,omitempty"`
	Min     *float64  `json:"min,omitempty"`
	Max     *float64  `json:"max,omitempty"`
	Choices []string  `json:"choices,omitempty"`
}

func bounds(min, max float64) (*float64, *float64) {
	return &min, &max
}

func number(name, info string, def, min, max float64) Input {
	lo, hi := bounds(min, max)
	return Input{Name: name, Info: info, Kind: InputNumber, Default: def, Min: lo, Max: hi}
}

// inputs is kept in the order the model declares its parameters.
var inputs = func() []Input {
	quality := Input{Name: "output_quality", Info: "Quality of the output images, from 0 to 100. 100 is best quality, 0 is lowest quality.", Kind: InputInteger, Default: 95}
	quality.Min, quality.Max = bounds(0, 100)
	list := []Input{
		{Name: "image", Kind: InputImage},
		number("rotate_pitch", "Adjusts the up and down tilt of the face", 0, -20, 20),
		number("rotate_yaw", "Adjusts the left and right turn of the face", 0, -20, 20),
		number("rotate_roll", "Adjusts the tilt of the face to the left or right", 0, -20, 20),
		number("blink", "Controls the degree of eye closure", 0, -20, 5),
		number("eyebrow", "Adjusts the height and shape of the eyebrows", 0, -10, 15),
		{Name: "wink", Info: "Controls the degree of one eye closing", Kind: InputNumber, Default: 0.0},
		number("pupil_x", "Adjusts the horizontal position of the pupils", 0, -15, 15),
		number("pupil_y", "Adjusts the vertical position of the pupils", 0, -15, 15),
		number("aaa", "Controls the mouth opening for 'aaa' sound", 0, -30, 120),
		number("eee", "Controls the mouth shape for 'eee' sound", 0, -20, 15),
		number("woo", "Controls the mouth shape for 'woo' sound", 0, -20, 15),
		number("smile", "Adjusts the degree of smiling", 0, -0.3, 1.3),
		{Name: "src_ratio", Info: "Source ratio", Kind: InputNumber, Default: 1.0},
		number("sample_ratio", "Sample ratio", 1, -0.2, 1.2),
		number("crop_factor", "Crop factor", 1.7, 1.5, 2.5),
		{Name: "output_format", Info: "Format of the output images", Kind: InputEnum, Default: "webp", Choices: []string{"webp", "jpg", "png"}},
		quality,
	}
	title := cases.Title(language.English)
	for i := range list {
		list[i].Label = title.String(strings.ReplaceAll(list[i].Name, "_", " "))
	}
	return list
}()

var inputIndex = func() map[string]int {
	idx := make(map[string]int, len(inputs))
	for i, in := range inputs {
		idx[in.Name] = i
	}
	return idx
}()

// Inputs returns a copy of the parameter schema in declaration order.
func Inputs() []Input {
	out := make([]Input, len(inputs))
	copy(out, inputs)
	return out
}

// InputNames returns parameter names in declaration order.
func InputNames() []string {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	return names
}

// LookupInput finds the schema entry for name.
func LookupInput(name string) (Input, bool) {
	i, ok := inputIndex[name]
	if !ok {
		return Input{}, false
	}
	return inputs[i], true
}

// OutputConfig declares the panel's display slots: a single image.
func OutputConfig(overflow output.Overflow) output.Config {
	return output.Config{
		Slots:    []output.Slot{{Name: "image", Kind: output.SlotImage}},
		Overflow: overflow,
	}
}

// ParseValue converts a raw form value for the named parameter. An empty
// string yields a nil value, meaning the backend default applies.
func ParseValue(name, raw string) (any, error) {
	in, ok := LookupInput(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	switch in.Kind {
	case InputImage, InputEnum:
		return in.check(raw)
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, name)
		}
		return in.check(f)
	}
}

// CoerceValue validates a decoded JSON value for the named parameter.
func CoerceValue(name string, v any) (any, error) {
	in, ok := LookupInput(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseValue(name, val)
	case json.Number:
		return ParseValue(name, val.String())
	case float64:
		return in.check(val)
	case int:
		return in.check(float64(val))
	default:
		return nil, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidParameter, name, v)
	}
}

func (in Input) check(v any) (any, error) {
	switch in.Kind {
	case InputImage:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a file or URL", ErrInvalidParameter, in.Name)
		}
		return s, nil
	case InputEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be one of %s", ErrInvalidParameter, in.Name, strings.Join(in.Choices, ", "))
		}
		s = strings.ToLower(s)
		for _, c := range in.Choices {
			if c == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%w: %s must be one of %s", ErrInvalidParameter, in.Name, strings.Join(in.Choices, ", "))
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidParameter, in.Name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s must be finite", ErrInvalidParameter, in.Name)
	}
	if in.Min != nil && f < *in.Min {
		return nil, fmt.Errorf("%w: %s must be >= %g", ErrInvalidParameter, in.Name, *in.Min)
	}
	if in.Max != nil && f > *in.Max {
		return nil, fmt.Errorf("%w: %s must be <= %g", ErrInvalidParameter, in.Name, *in.Max)
	}
	if in.Kind == InputInteger {
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%w: %s must be a whole number", ErrInvalidParameter, in.Name)
		}
		return int(f), nil
	}
	return f, nil
}

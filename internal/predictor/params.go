package predictor

import (
	"encoding/json"
	"os"
	"strings"
)

// Param is one named input for the model.
type Param struct {
	Name  string
	Value any
}

// ParamSet is an ordered set of inputs. Names are unique.
type ParamSet []Param

// Set replaces the value of name, or appends it when absent.
func (p ParamSet) Set(name string, value any) ParamSet {
	for i := range p {
		if p[i].Name == name {
			p[i].Value = value
			return p
		}
	}
	return append(p, Param{Name: name, Value: value})
}

// Get returns the value stored under name.
func (p ParamSet) Get(name string) (any, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return nil, false
}

// Request is the body sent to POST /predictions.
type Request struct {
	Input Input `json:"input"`
}

// Input keeps parameter order when encoded.
type Input struct {
	names  []string
	values map[string]any
}

// Len returns the number of transmitted parameters.
func (in Input) Len() int { return len(in.names) }

// Value returns the transmitted value of name.
func (in Input) Value(name string) (any, bool) {
	v, ok := in.values[name]
	return v, ok
}

func (in Input) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range in.names {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(in.values[name])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// BuildPayload filters and rewrites params for transmission. Entries with a
// nil or empty-string value are left out so the backend's defaults apply.
// String values naming an existing local file become <origin>/file=<path>,
// the route the panel serves uploads from, because the backend cannot read
// the panel's filesystem.
func BuildPayload(params ParamSet, origin string, exists func(string) bool) Request {
	if exists == nil {
		exists = fileExists
	}
	origin = strings.TrimRight(origin, "/")
	in := Input{values: make(map[string]any, len(params))}
	for _, p := range params {
		value := p.Value
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			if s == "" {
				continue
			}
			if exists(s) {
				value = origin + "/file=" + s
			}
		}
		if _, dup := in.values[p.Name]; !dup {
			in.names = append(in.names, p.Name)
		}
		in.values[p.Name] = value
	}
	return Request{Input: in}
}

func fileExists(p string) bool {
	if strings.Contains(p, "://") {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

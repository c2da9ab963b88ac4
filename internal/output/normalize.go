package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SlotKind is the type of a display slot.
type SlotKind string

const (
	SlotImage SlotKind = "image"
	SlotText  SlotKind = "text"
	SlotJSON  SlotKind = "json"
	SlotFile  SlotKind = "file"
)

// Slot is one fixed result placeholder.
type Slot struct {
	Name string   `json:"name"`
	Kind SlotKind `json:"kind"`
}

// Overflow decides what happens to results beyond the declared slots.
type Overflow string

const (
	// OverflowDrop keeps the first N results.
	OverflowDrop Overflow = "drop"
	// OverflowAppend keeps every result, adding slots shaped like the last one.
	OverflowAppend Overflow = "append"
)

// ParseOverflow maps a config string to an Overflow, defaulting to drop.
func ParseOverflow(s string) (Overflow, error) {
	switch Overflow(s) {
	case "", OverflowDrop:
		return OverflowDrop, nil
	case OverflowAppend:
		return OverflowAppend, nil
	default:
		return "", fmt.Errorf("output: unknown overflow policy %q", s)
	}
}

// Config is the declared set of display slots.
type Config struct {
	Slots    []Slot
	Overflow Overflow
}

// ErrNoSlots is returned when Normalize is called without any slot.
var ErrNoSlots = errors.New("output: at least one slot is required")

func (c Config) slotAt(i int) Slot {
	if i < len(c.Slots) {
		return c.Slots[i]
	}
	last := c.Slots[len(c.Slots)-1]
	return Slot{Name: fmt.Sprintf("%s_%d", last.Name, i+1), Kind: last.Kind}
}

// Display is one rendered slot value, or a hidden placeholder.
type Display struct {
	Slot   string          `json:"slot"`
	Kind   SlotKind        `json:"kind"`
	Hidden bool            `json:"hidden,omitempty"`
	URL    string          `json:"url,omitempty"`
	MIME   string          `json:"mime,omitempty"`
	Text   string          `json:"text,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Hide returns the placeholder for an unused slot.
func Hide(s Slot) Display {
	return Display{Slot: s.Name, Kind: s.Kind, Hidden: true}
}

// Result is the normalized output. It encodes as a bare value when it holds a
// single entry and as an array otherwise.
type Result struct {
	Values []Display
}

// Single returns the only value when the result has exactly one entry.
func (r Result) Single() (Display, bool) {
	if len(r.Values) != 1 {
		return Display{}, false
	}
	return r.Values[0], true
}

// Visible returns the entries that are not hidden.
func (r Result) Visible() []Display {
	var out []Display
	for _, v := range r.Values {
		if !v.Hidden {
			out = append(out, v)
		}
	}
	return out
}

func (r Result) MarshalJSON() ([]byte, error) {
	if d, ok := r.Single(); ok {
		return json.Marshal(d)
	}
	if r.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Values)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var d Display
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		r.Values = []Display{d}
		return nil
	}
	return json.Unmarshal(data, &r.Values)
}

// Normalize maps a raw backend output onto cfg's slots. The result always
// has exactly len(cfg.Slots) entries, unused ones hidden, unless the policy is
// OverflowAppend and the backend returned more. With a pure renderer the call
// is pure.
func Normalize(ctx context.Context, raw json.RawMessage, cfg Config, r Renderer) (Result, error) {
	if len(cfg.Slots) == 0 {
		return Result{}, ErrNoSlots
	}
	if r == nil {
		r = ReferenceRenderer{}
	}
	n := len(cfg.Slots)

	var items []json.RawMessage
	if cfg.Slots[0].Kind == SlotJSON {
		// A leading json slot receives the whole payload untouched.
		whole := bytes.TrimSpace(raw)
		if len(whole) == 0 {
			whole = []byte("null")
		}
		items = []json.RawMessage{whole}
	} else {
		shape, err := Classify(raw)
		if err != nil {
			return Result{}, err
		}
		items = Flatten(shape)
	}

	if len(items) > n && cfg.Overflow != OverflowAppend {
		items = items[:n]
	}

	values := make([]Display, 0, max(n, len(items)))
	for i, item := range items {
		slot := cfg.slotAt(i)
		if slot.Kind != SlotJSON && isNull(item) {
			values = append(values, Hide(slot))
			continue
		}
		d, err := r.Render(ctx, slot, item)
		if err != nil {
			return Result{}, fmt.Errorf("output: render %s: %w", slot.Name, err)
		}
		values = append(values, d)
	}
	for i := len(values); i < n; i++ {
		values = append(values, Hide(cfg.Slots[i]))
	}
	return Result{Values: values}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

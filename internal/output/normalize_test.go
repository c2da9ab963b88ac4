package output

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func imageSlots(n int) Config {
	slots := make([]Slot, n)
	for i := range slots {
		slots[i] = Slot{Name: "image", Kind: SlotImage}
		if i > 0 {
			slots[i].Name = "image_" + string(rune('1'+i))
		}
	}
	return Config{Slots: slots}
}

func TestNormalizeSingleURLReturnsBareValue(t *testing.T) {
	raw := json.RawMessage(`"https://cdn.example.com/out.webp"`)
	res, err := Normalize(context.Background(), raw, imageSlots(1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := res.Single()
	if !ok {
		t.Fatalf("expected a single value, got %d", len(res.Values))
	}
	want := Display{Slot: "image", Kind: SlotImage, URL: "https://cdn.example.com/out.webp", MIME: "image/webp"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}

	encoded, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(encoded), "{") {
		t.Fatalf("single result should encode as an object, got %s", encoded)
	}
}

func TestNormalizeTruncatesExcessByDefault(t *testing.T) {
	raw := json.RawMessage(`["https://a/1.png","https://a/2.png","https://a/3.png"]`)
	res, err := Normalize(context.Background(), raw, imageSlots(1), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Values) != 1 {
		t.Fatalf("len = %d, want 1", len(res.Values))
	}
	if res.Values[0].URL != "https://a/1.png" {
		t.Fatalf("url = %q, want first element", res.Values[0].URL)
	}
}

func TestNormalizeHidesNullElements(t *testing.T) {
	raw := json.RawMessage(`[null,"https://a/2.png"]`)
	res, err := Normalize(context.Background(), raw, imageSlots(2), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Display{
		Hide(Slot{Name: "image", Kind: SlotImage}),
		{Slot: "image_2", Kind: SlotImage, URL: "https://a/2.png", MIME: "image/png"},
	}
	if diff := cmp.Diff(want, res.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeArity(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		slots      int
		overflow   Overflow
		wantLen    int
		wantHidden int
	}{
		{name: "fewer than slots", raw: `["https://a/1.png"]`, slots: 3, wantLen: 3, wantHidden: 2},
		{name: "equal to slots", raw: `["https://a/1.png","https://a/2.png"]`, slots: 2, wantLen: 2},
		{name: "more than slots", raw: `["https://a/1.png","https://a/2.png","https://a/3.png"]`, slots: 2, wantLen: 2},
		{name: "append keeps extras", raw: `["https://a/1.png","https://a/2.png","https://a/3.png"]`, slots: 2, overflow: OverflowAppend, wantLen: 3},
		{name: "null output", raw: `null`, slots: 1, wantLen: 1, wantHidden: 1},
		{name: "empty list", raw: `[]`, slots: 2, wantLen: 2, wantHidden: 2},
		{name: "trailing null element", raw: `["https://a/1.png",null]`, slots: 2, wantLen: 2, wantHidden: 1},
		{name: "only null element", raw: `[null]`, slots: 2, wantLen: 2, wantHidden: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := imageSlots(tc.slots)
			cfg.Overflow = tc.overflow
			res, err := Normalize(context.Background(), json.RawMessage(tc.raw), cfg, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(res.Values) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(res.Values), tc.wantLen)
			}
			hidden := len(res.Values) - len(res.Visible())
			if hidden != tc.wantHidden {
				t.Fatalf("hidden = %d, want %d", hidden, tc.wantHidden)
			}
			for i := len(res.Values) - tc.wantHidden; i < len(res.Values); i++ {
				if !res.Values[i].Hidden {
					t.Fatalf("value %d should be hidden", i)
				}
			}
		})
	}
}

func TestNormalizeAppendNamesExtraSlots(t *testing.T) {
	cfg := Config{Slots: []Slot{{Name: "image", Kind: SlotImage}}, Overflow: OverflowAppend}
	res, err := Normalize(context.Background(), json.RawMessage(`["https://a/1.png","https://a/2.png"]`), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Values[1].Slot != "image_2" || res.Values[1].Kind != SlotImage {
		t.Fatalf("extra slot = %+v, want image_2 of kind image", res.Values[1])
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := json.RawMessage(`{"images":["https://a/1.png","https://a/2.png"],"seed":7}`)
	cfg := imageSlots(3)
	first, err := Normalize(context.Background(), raw, cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Normalize(context.Background(), raw, cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("normalize is not idempotent (-first +second):\n%s", diff)
	}
}

func TestNormalizeJSONSlotGetsWholePayload(t *testing.T) {
	cfg := Config{Slots: []Slot{{Name: "result", Kind: SlotJSON}, {Name: "preview", Kind: SlotImage}}}
	raw := json.RawMessage(` {"faces": 1, "image": "https://a/1.png"} `)
	res, err := Normalize(context.Background(), raw, cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Display{
		{Slot: "result", Kind: SlotJSON, Data: json.RawMessage(`{"faces": 1, "image": "https://a/1.png"}`)},
		{Slot: "preview", Kind: SlotImage, Hidden: true},
	}
	if diff := cmp.Diff(want, res.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeTextSlot(t *testing.T) {
	cfg := Config{Slots: []Slot{{Name: "caption", Kind: SlotText}, {Name: "score", Kind: SlotText}}}
	res, err := Normalize(context.Background(), json.RawMessage(`["a smiling face", 0.93]`), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Values[0].Text != "a smiling face" || res.Values[1].Text != "0.93" {
		t.Fatalf("unexpected text values: %+v", res.Values)
	}
}

func TestNormalizeErrors(t *testing.T) {
	if _, err := Normalize(context.Background(), json.RawMessage(`"x"`), Config{}, nil); !errors.Is(err, ErrNoSlots) {
		t.Fatalf("err = %v, want ErrNoSlots", err)
	}
	if _, err := Normalize(context.Background(), json.RawMessage(`{broken`), imageSlots(1), nil); !errors.Is(err, ErrInvalidOutput) {
		t.Fatalf("err = %v, want ErrInvalidOutput", err)
	}
	if _, err := Normalize(context.Background(), json.RawMessage(`42`), imageSlots(1), nil); !errors.Is(err, ErrUnrenderable) {
		t.Fatalf("err = %v, want ErrUnrenderable", err)
	}
}

func TestResultJSONEncoding(t *testing.T) {
	multi := Result{Values: []Display{
		{Slot: "a", Kind: SlotImage, URL: "https://a/1.png"},
		{Slot: "b", Kind: SlotImage, Hidden: true},
	}}
	encoded, err := json.Marshal(multi)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(encoded), "[") {
		t.Fatalf("multi result should encode as an array, got %s", encoded)
	}
	var decoded Result
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(multi, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	empty, err := json.Marshal(Result{})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(empty) != "[]" {
		t.Fatalf("empty result = %s, want []", empty)
	}
}

func TestParseOverflow(t *testing.T) {
	if o, err := ParseOverflow(""); err != nil || o != OverflowDrop {
		t.Fatalf("ParseOverflow(\"\") = %q, %v", o, err)
	}
	if o, err := ParseOverflow("append"); err != nil || o != OverflowAppend {
		t.Fatalf("ParseOverflow(append) = %q, %v", o, err)
	}
	if _, err := ParseOverflow("grow"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

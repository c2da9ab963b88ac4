package domain

import (
	"errors"
	"testing"

	"expressionpanel/internal/output"
)

func TestInputNamesOrder(t *testing.T) {
	want := []string{
		"image", "rotate_pitch", "rotate_yaw", "rotate_roll", "blink", "eyebrow", "wink",
		"pupil_x", "pupil_y", "aaa", "eee", "woo", "smile", "src_ratio", "sample_ratio",
		"crop_factor", "output_format", "output_quality",
	}
	got := InputNames()
	if len(got) != len(want) {
		t.Fatalf("InputNames len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("InputNames[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInputLabels(t *testing.T) {
	in, ok := LookupInput("rotate_pitch")
	if !ok {
		t.Fatalf("rotate_pitch missing")
	}
	if in.Label != "Rotate Pitch" {
		t.Fatalf("label = %q, want Rotate Pitch", in.Label)
	}
	in, _ = LookupInput("output_quality")
	if in.Label != "Output Quality" {
		t.Fatalf("label = %q, want Output Quality", in.Label)
	}
}

func TestInputsReturnsCopy(t *testing.T) {
	list := Inputs()
	list[0].Name = "mutated"
	if Inputs()[0].Name != "image" {
		t.Fatalf("Inputs should return a copy")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		raw     string
		want    any
		wantErr error
	}{
		{name: "empty means default", param: "blink", raw: "  ", want: nil},
		{name: "number in range", param: "smile", raw: "0.5", want: 0.5},
		{name: "negative bound", param: "rotate_yaw", raw: "-20", want: -20.0},
		{name: "above max", param: "blink", raw: "6", wantErr: ErrInvalidParameter},
		{name: "below min", param: "crop_factor", raw: "1.4", wantErr: ErrInvalidParameter},
		{name: "unbounded number", param: "wink", raw: "250", want: 250.0},
		{name: "not a number", param: "eee", raw: "loud", wantErr: ErrInvalidParameter},
		{name: "integer", param: "output_quality", raw: "80", want: 80},
		{name: "integer fraction", param: "output_quality", raw: "80.5", wantErr: ErrInvalidParameter},
		{name: "enum", param: "output_format", raw: "PNG", want: "png"},
		{name: "enum invalid", param: "output_format", raw: "gif", wantErr: ErrInvalidParameter},
		{name: "image passthrough", param: "image", raw: "https://example.com/a.png", want: "https://example.com/a.png"},
		{name: "unknown", param: "volume", raw: "11", wantErr: ErrUnknownParameter},
		{name: "nan", param: "wink", raw: "NaN", wantErr: ErrInvalidParameter},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseValue(tc.param, tc.raw)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseValue(%q, %q) = %#v, want %#v", tc.param, tc.raw, got, tc.want)
			}
		})
	}
}

func TestCoerceValue(t *testing.T) {
	got, err := CoerceValue("output_quality", float64(70))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 70 {
		t.Fatalf("got %#v, want 70", got)
	}
	if got, err := CoerceValue("blink", nil); err != nil || got != nil {
		t.Fatalf("nil value = %#v, %v; want nil, nil", got, err)
	}
	if _, err := CoerceValue("blink", true); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("bool value err = %v, want ErrInvalidParameter", err)
	}
	if _, err := CoerceValue("output_format", 3.0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("numeric enum err = %v, want ErrInvalidParameter", err)
	}
}

func TestOutputConfigDeclaresSingleImageSlot(t *testing.T) {
	cfg := OutputConfig(output.OverflowDrop)
	if len(cfg.Slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(cfg.Slots))
	}
	if cfg.Slots[0].Kind != output.SlotImage {
		t.Fatalf("slot kind = %q, want image", cfg.Slots[0].Kind)
	}
}

package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
)

// ErrUnrenderable is returned when an element cannot be shown in its slot.
var ErrUnrenderable = errors.New("output: element cannot be rendered")

// Renderer resolves one output element into a value the display layer can
// consume directly.
type Renderer interface {
	Render(ctx context.Context, slot Slot, item json.RawMessage) (Display, error)
}

// ReferenceRenderer renders without I/O: references stay references.
type ReferenceRenderer struct{}

func (ReferenceRenderer) Render(_ context.Context, slot Slot, item json.RawMessage) (Display, error) {
	d := Display{Slot: slot.Name, Kind: slot.Kind}
	switch slot.Kind {
	case SlotJSON:
		d.Data = append(json.RawMessage(nil), bytes.TrimSpace(item)...)
		return d, nil
	case SlotText:
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			d.Text = s
			return d, nil
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err != nil {
			return Display{}, fmt.Errorf("%w: %v", ErrUnrenderable, err)
		}
		d.Text = buf.String()
		return d, nil
	default:
		ref, err := reference(item)
		if err != nil {
			return Display{}, err
		}
		d.URL = ref
		d.MIME = guessMIME(ref)
		return d, nil
	}
}

// reference extracts a resource reference: a JSON string, or an object
// carrying a "url" or "path" field.
func reference(item json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("%w: empty reference", ErrUnrenderable)
	}
	var obj struct {
		URL  string `json:"url"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(item, &obj); err == nil {
		if u := strings.TrimSpace(obj.URL); u != "" {
			return u, nil
		}
		if p := strings.TrimSpace(obj.Path); p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnrenderable, truncate(string(item), 64))
}

func guessMIME(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		meta, _, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
		if !ok {
			return ""
		}
		mediaType, _, _ := strings.Cut(meta, ";")
		return mediaType
	}
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return ""
	}
	t := mime.TypeByExtension(ext)
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Saver persists bytes under a relative key and returns the absolute local
// path of the written file.
type Saver interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
}

// StoringRenderer downloads http(s) references for image and file slots into
// local storage so results outlive the backend's temporary URLs. The
// rendered URL points at the panel's own /file= route.
type StoringRenderer struct {
	Client   *http.Client
	Store    Saver
	Origin   string
	Prefix   string
	MaxBytes int64
}

func (s StoringRenderer) Render(ctx context.Context, slot Slot, item json.RawMessage) (Display, error) {
	d, err := ReferenceRenderer{}.Render(ctx, slot, item)
	if err != nil {
		return Display{}, err
	}
	if slot.Kind != SlotImage && slot.Kind != SlotFile {
		return d, nil
	}
	lower := strings.ToLower(d.URL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return d, nil
	}
	data, contentType, err := s.download(ctx, d.URL)
	if err != nil {
		return Display{}, err
	}
	if d.MIME == "" {
		d.MIME = contentType
	}
	prefix := strings.Trim(s.Prefix, "/")
	if prefix == "" {
		prefix = "outputs"
	}
	key := path.Join(prefix, uuid.NewString()+extensionFor(d.URL, d.MIME))
	saved, err := s.Store.Save(ctx, key, data)
	if err != nil {
		return Display{}, fmt.Errorf("output: store %s: %w", slot.Name, err)
	}
	d.URL = strings.TrimRight(s.Origin, "/") + "/file=" + saved
	return d, nil
}

func (s StoringRenderer) download(ctx context.Context, ref string) ([]byte, string, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("output: build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("output: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("output: download status %d", resp.StatusCode)
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = 64 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("output: read download: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("output: download exceeds %d bytes", limit)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func extensionFor(ref, mimeType string) string {
	if u, err := url.Parse(ref); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return strings.ToLower(ext)
		}
	}
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

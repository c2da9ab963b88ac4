package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"expressionpanel/internal/domain"
)

func newTestCommand() (*cobra.Command, options) {
	o := options{Params: make(map[string]*string)}
	cmd := &cobra.Command{Use: "predict"}
	for _, in := range domain.Inputs() {
		o.Params[in.Name] = cmd.Flags().String(in.Name, "", in.Info)
	}
	return cmd, o
}

func TestCollectParamsOnlyChangedFlags(t *testing.T) {
	cmd, o := newTestCommand()
	o.Origin = "http://panel.local"
	if err := cmd.Flags().Parse([]string{"--smile", "0.8", "--image", "https://a/b.png", "--output_format", "JPG"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	params, err := collectParams(cmd, o)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(params) != 3 || params[0].Name != "image" || params[1].Name != "smile" || params[2].Name != "output_format" {
		t.Fatalf("params = %+v", params)
	}
	if params[2].Value != "jpg" {
		t.Fatalf("output_format = %v", params[2].Value)
	}
}

func TestCollectParamsRejectsInvalid(t *testing.T) {
	cmd, o := newTestCommand()
	_ = cmd.Flags().Parse([]string{"--image", "https://a/b.png", "--crop_factor", "9"})
	if _, err := collectParams(cmd, o); err == nil {
		t.Fatalf("expected out of range error")
	}

	cmd, o = newTestCommand()
	_ = cmd.Flags().Parse([]string{"--smile", "1"})
	if _, err := collectParams(cmd, o); err != domain.ErrImageRequired {
		t.Fatalf("err = %v, want ErrImageRequired", err)
	}
}

func TestInlineImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := inlineImage(path)
	if err != nil {
		t.Fatalf("inline: %v", err)
	}
	if v != "data:image/png;base64,cG5n" {
		t.Fatalf("data uri = %v", v)
	}
	if v, _ := inlineImage("https://a/b.png"); v != "https://a/b.png" {
		t.Fatalf("url changed: %v", v)
	}
}

func TestRunPrintsNormalizedOutput(t *testing.T) {
	var submitted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			submitted = string(body)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1","urls":{"get":"/predictions/p1"}}`))
		default:
			_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":["https://a/1.webp","https://a/2.webp"]}`))
		}
	}))
	defer srv.Close()

	cmd, o := newTestCommand()
	_ = cmd.Flags().Parse([]string{"--image", "https://a/b.png"})
	o.Backend = srv.URL
	o.Overflow = "append"
	o.Timeout = 5e9
	o.Interval = 1e6
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	if err := run(context.Background(), cmd, o); err != nil {
		t.Fatalf("run: %v", err)
	}
	if submitted != `{"input":{"image":"https://a/b.png"}}` {
		t.Fatalf("submitted = %s", submitted)
	}
	out := stdout.String()
	if !strings.Contains(out, "https://a/1.webp") || !strings.Contains(out, `"slot": "image_2"`) {
		t.Fatalf("output = %s", out)
	}
}

func TestRunRejectsNonPositiveTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		cmd, o := newTestCommand()
		_ = cmd.Flags().Parse([]string{"--image", "https://a/b.png"})
		o.Backend = "http://127.0.0.1:1"
		o.Overflow = "drop"
		o.Timeout = timeout
		err := run(context.Background(), cmd, o)
		if err == nil || !strings.Contains(err.Error(), "--timeout") {
			t.Fatalf("timeout %s: err = %v, want --timeout error", timeout, err)
		}
	}
}

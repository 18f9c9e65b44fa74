package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, w, h int) File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(t.TempDir(), "cake.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return f
}

func TestImagePreviewIsBounded(t *testing.T) {
	f := writePNG(t, 900, 600)
	if f.MimeType != "image/png" {
		t.Fatalf("unexpected mime %q", f.MimeType)
	}
	p, err := Previewer{}.Preview(context.Background(), f)
	if err != nil || p == nil {
		t.Fatalf("preview: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("preview is not a jpeg: %v", err)
	}
	if cfg.Width != PreviewSize || cfg.Height != 200 {
		t.Fatalf("unexpected preview size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestImageDimensions(t *testing.T) {
	f := writePNG(t, 64, 48)
	d := Previewer{}.Dimensions(context.Background(), f)
	if d.Width == nil || d.Height == nil || *d.Width != 64 || *d.Height != 48 || d.Duration != nil {
		t.Fatalf("unexpected dimensions %+v", d)
	}
}

func TestVideoPreviewWithoutFFmpeg(t *testing.T) {
	p := Previewer{LookPath: func(string) (string, error) { return "", errors.New("not found") }}
	f := File{Path: "/nonexistent/clip.mp4", Name: "clip.mp4", MimeType: "video/mp4"}
	preview, err := p.Preview(context.Background(), f)
	if err != nil || preview != nil {
		t.Fatalf("expected no preview and no error, got %v %v", preview, err)
	}
	if d := p.Dimensions(context.Background(), f); d.Width != nil || d.Duration != nil {
		t.Fatalf("expected empty dimensions, got %+v", d)
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{"streams":[{"width":1920,"height":1080}],"format":{"duration":"12.480000"}}`)
	d := parseProbe(out)
	if d.Width == nil || *d.Width != 1920 || *d.Height != 1080 || d.Duration == nil || *d.Duration != 12.48 {
		t.Fatalf("unexpected probe result %+v", d)
	}
	if d := parseProbe([]byte("garbage")); d.Width != nil {
		t.Fatalf("expected empty result for bad output")
	}
}

func TestDetectMIME(t *testing.T) {
	tests := map[string]string{
		"a.JPG":  "image/jpeg",
		"b.mov":  "video/quicktime",
		"c.heic": "image/heic",
		"d.webm": "video/webm",
	}
	for name, want := range tests {
		got, err := DetectMIME(name)
		if err != nil || got != want {
			t.Fatalf("DetectMIME(%s) = %q, %v; want %q", name, got, err, want)
		}
	}
}

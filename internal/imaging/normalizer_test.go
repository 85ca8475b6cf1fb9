package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/jwhit732/vto-mvp/internal/domain"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestNormalizeSmallImagePassesThrough(t *testing.T) {
	data := encodePNG(t, 640, 480)
	out, err := Normalize("person", Payload{Data: data, MIME: "image/png", Size: int64(len(data))})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !bytes.Equal(out.Data, data) {
		t.Fatal("in-bounds image was re-encoded, want byte-identical passthrough")
	}
	if out.MIME != "image/png" {
		t.Fatalf("MIME = %q, want image/png", out.MIME)
	}
}

func TestNormalizeDownscalesOversized(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		wantW  int
		wantH  int
	}{
		{name: "wide", w: 2048, h: 1024, wantW: 1024, wantH: 512},
		{name: "tall", w: 512, h: 2048, wantW: 256, wantH: 1024},
		{name: "square", w: 1500, h: 1500, wantW: 1024, wantH: 1024},
		{name: "barely over", w: 1025, h: 1000, wantW: 1024, wantH: 999},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := encodePNG(t, tc.w, tc.h)
			out, err := Normalize("garment", Payload{Data: data, MIME: "image/png", Size: int64(len(data))})
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			w, h := decodeDims(t, out.Data)
			if w > MaxDimension || h > MaxDimension {
				t.Fatalf("dimensions %dx%d exceed %d", w, h, MaxDimension)
			}
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("dimensions = %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestNormalizeKeepsJPEGFormat(t *testing.T) {
	data := encodeJPEG(t, 1600, 1200)
	out, err := Normalize("person", Payload{Data: data, MIME: "image/jpeg", Size: int64(len(data))})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if out.MIME != "image/jpeg" {
		t.Fatalf("MIME = %q, want image/jpeg", out.MIME)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	data := encodePNG(t, 3000, 1000)
	first, err := Normalize("person", Payload{Data: data, MIME: "image/png", Size: int64(len(data))})
	if err != nil {
		t.Fatalf("first Normalize returned error: %v", err)
	}
	second, err := Normalize("person", Payload{Data: first.Data, MIME: first.MIME, Size: int64(len(first.Data))})
	if err != nil {
		t.Fatalf("second Normalize returned error: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("second pass changed already-normalized bytes")
	}
}

func TestNormalizeRejections(t *testing.T) {
	small := encodePNG(t, 10, 10)
	tests := []struct {
		name    string
		payload Payload
	}{
		{
			name:    "webp declared type",
			payload: Payload{Data: small, MIME: "image/webp", Size: int64(len(small))},
		},
		{
			name:    "non image type",
			payload: Payload{Data: small, MIME: "application/pdf", Size: int64(len(small))},
		},
		{
			name:    "declared size over ceiling",
			payload: Payload{Data: small, MIME: "image/png", Size: MaxBytes + 1},
		},
		{
			name:    "garbage bytes",
			payload: Payload{Data: []byte("not an image"), MIME: "image/png", Size: 12},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize("person", tc.payload)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error = %v, want *domain.ValidationError", err)
			}
			if vErr.Role != "person" {
				t.Fatalf("Role = %q, want %q", vErr.Role, "person")
			}
		})
	}
}

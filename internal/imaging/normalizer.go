package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif"

	"golang.org/x/image/draw"

	"github.com/jwhit732/vto-mvp/internal/domain"
)

const (
	// MaxBytes is the declared-size ceiling for an uploaded image.
	MaxBytes = 4 << 20
	// MaxDimension bounds both edges of an image forwarded to the provider.
	MaxDimension = 1024

	jpegQuality = 90
)

// Payload is a raw uploaded image together with its declared media type and
// declared byte length.
type Payload struct {
	Data []byte
	MIME string
	Size int64
}

// Normalized is a validated, bounded image ready for the provider.
type Normalized struct {
	Data []byte
	MIME string
}

// Base64 returns the image bytes in the wire encoding the provider expects.
func (n *Normalized) Base64() string {
	return base64.StdEncoding.EncodeToString(n.Data)
}

// Normalize validates the payload and downsizes it when either dimension
// exceeds MaxDimension, preserving aspect ratio and never upscaling. Images
// already within bounds pass through byte-identical, so the operation is
// idempotent. Role labels validation failures for the caller.
func Normalize(role string, p Payload) (*Normalized, error) {
	mime := strings.ToLower(strings.TrimSpace(p.MIME))
	if !strings.HasPrefix(mime, "image/") {
		return nil, domain.Validationf(role, "unsupported file type %q", p.MIME)
	}
	if mime == "image/webp" {
		return nil, domain.Validationf(role, "WebP is not supported, use JPEG or PNG")
	}
	size := p.Size
	if size <= 0 {
		size = int64(len(p.Data))
	}
	if size > MaxBytes {
		return nil, domain.Validationf(role, "image exceeds the 4 MiB limit")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		return nil, domain.Validationf(role, "image could not be decoded")
	}
	if cfg.Width <= MaxDimension && cfg.Height <= MaxDimension {
		return &Normalized{Data: p.Data, MIME: mime}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		return nil, domain.Validationf(role, "image could not be decoded")
	}

	w, h := fitWithin(cfg.Width, cfg.Height, MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	outMIME := "image/png"
	if mime == "image/jpeg" || mime == "image/jpg" {
		outMIME = "image/jpeg"
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, domain.Validationf(role, "image could not be re-encoded")
	}
	return &Normalized{Data: buf.Bytes(), MIME: outMIME}, nil
}

// fitWithin scales (w, h) down so both fit inside max while keeping the
// aspect ratio. Inputs already within bounds come back unchanged.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	scale := float64(max) / float64(w)
	if h > w {
		scale = float64(max) / float64(h)
	}
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	if nw > max {
		nw = max
	}
	if nh > max {
		nh = max
	}
	return nw, nh
}

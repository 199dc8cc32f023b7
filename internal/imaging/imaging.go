// Package imaging shrinks captured stills before they are sent to clients.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Resize decodes a JPEG, scales it so its longest edge is at most maxEdge,
// and re-encodes it at quality. Images already small enough are returned
// unchanged.
func Resize(data []byte, maxEdge, quality int) ([]byte, error) {
	if maxEdge <= 0 {
		return data, nil
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read jpeg header: %w", err)
	}
	w, h := fit(cfg.Width, cfg.Height, maxEdge)
	if w == cfg.Width && h == cfg.Height {
		return data, nil
	}

	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	buf.Grow(len(data) / 2)
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Resizer returns Resize bound to maxEdge and quality.
func Resizer(maxEdge, quality int) func([]byte) ([]byte, error) {
	return func(data []byte) ([]byte, error) {
		return Resize(data, maxEdge, quality)
	}
}

func fit(w, h, maxEdge int) (int, int) {
	if w <= maxEdge && h <= maxEdge {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, h*maxEdge/w)
	}
	return max(1, w*maxEdge/h), maxEdge
}

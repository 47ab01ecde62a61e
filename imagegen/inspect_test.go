package imagegen

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"diffusionto/diffusion"
)

func TestInspect(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		info, err := Inspect(makePNG(t, 12, 7))
		if err != nil {
			t.Fatalf("Inspect() error = %v", err)
		}
		want := ImageInfo{Format: "png", Width: 12, Height: 7, Extension: ".png", MediaType: "image/png"}
		if info != want {
			t.Errorf("Inspect() = %+v, want %+v", info, want)
		}
	})

	t.Run("jpeg", func(t *testing.T) {
		info, err := Inspect(makeJPEG(t, 16, 8))
		if err != nil {
			t.Fatalf("Inspect() error = %v", err)
		}
		if info.Format != "jpeg" || info.Extension != ".jpg" || info.MediaType != "image/jpeg" {
			t.Errorf("Inspect() = %+v, want jpeg", info)
		}
		if info.Width != 16 || info.Height != 8 {
			t.Errorf("dimensions = %dx%d, want 16x8", info.Width, info.Height)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Inspect(nil)
		if !errors.Is(err, diffusion.ErrDecode) {
			t.Errorf("Inspect(nil) error = %v, want ErrDecode", err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := Inspect([]byte("definitely not pixels"))
		if !errors.Is(err, diffusion.ErrDecode) {
			t.Errorf("Inspect() error = %v, want ErrDecode", err)
		}
	})
}

func TestWriteThumbnail(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxSide       int
		wantW, wantH  int
	}{
		{"landscape", 200, 100, 50, 50, 25},
		{"portrait", 60, 120, 30, 15, 30},
		{"already small", 20, 10, 64, 20, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteThumbnail(&buf, makePNG(t, tt.width, tt.height), tt.maxSide); err != nil {
				t.Fatalf("WriteThumbnail() error = %v", err)
			}
			cfg, err := png.DecodeConfig(&buf)
			if err != nil {
				t.Fatalf("thumbnail is not a PNG: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("thumbnail = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestWriteThumbnailErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteThumbnail(&buf, makePNG(t, 4, 4), 0); err == nil {
		t.Error("WriteThumbnail() with size 0 should fail")
	}
	if err := WriteThumbnail(&buf, []byte("junk"), 32); !errors.Is(err, diffusion.ErrDecode) {
		t.Errorf("WriteThumbnail() error = %v, want ErrDecode", err)
	}
}

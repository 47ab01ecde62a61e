package imagegen

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestExtensionFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/jpg", ".jpg"},
		{"IMAGE/PNG; charset=binary", ".png"},
		{"image/gif", ".gif"},
		{"image/webp", ".webp"},
		{"image/x-ms-bmp", ".bmp"},
		{"image/avif", ".avif"},
		{"image/tiff", ".tiff"},
		{"application/octet-stream", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := extensionFromContentType(tt.contentType); got != tt.want {
				t.Errorf("extensionFromContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestExtensionForFormat(t *testing.T) {
	tests := map[string]string{
		"png":  ".png",
		"jpeg": ".jpg",
		"gif":  ".gif",
		"webp": ".webp",
		"bmp":  ".bmp",
		"tiff": "",
	}
	for format, want := range tests {
		if got := extensionForFormat(format); got != want {
			t.Errorf("extensionForFormat(%q) = %q, want %q", format, got, want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "cat.png", "cat.png"},
		{"slashes", "a/b\\c.png", "a_b_c.png"},
		{"reserved", `x:y*z?"<>|.png`, "x_y_z_____.png"},
		{"empty", "", "image"},
		{"dot", ".", "image"},
		{"dotdot", "..", "image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	long := sanitizeFilename(strings.Repeat("a", 300))
	if len(long) != 200 {
		t.Errorf("long name truncated to %d characters, want 200", len(long))
	}
}

func TestDefaultFilename(t *testing.T) {
	// sha256("hello")
	const sum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	if got := DefaultFilename([]byte("hello"), ".jpg"); got != sum+".jpg" {
		t.Errorf("DefaultFilename() = %q, want %q", got, sum+".jpg")
	}
	if got := DefaultFilename([]byte("hello"), ""); got != sum+".png" {
		t.Errorf("DefaultFilename() without extension = %q, want %q", got, sum+".png")
	}
}

func TestThumbnailPath(t *testing.T) {
	tests := map[string]string{
		filepath.Join("out", "cat.png"): filepath.Join("out", "cat.thumb.png"),
		"photo.jpg":                     "photo.thumb.png",
		"noext":                         "noext.thumb.png",
	}
	for in, want := range tests {
		if got := thumbnailPath(in); got != want {
			t.Errorf("thumbnailPath(%q) = %q, want %q", in, got, want)
		}
	}
}

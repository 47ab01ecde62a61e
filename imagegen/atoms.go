// Package imagegen turns finished diffusion.to images into files on disk.
//
// atoms.go holds the pure helpers: file extension mapping and filename
// sanitizing.
package imagegen

import (
	"path/filepath"
	"strings"

	"diffusionto/core"
)

// extensionFromContentType returns the file extension for a given Content-Type
// or data URL media type.
func extensionFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}

	lower := strings.ToLower(contentType)
	if idx := strings.Index(lower, ";"); idx != -1 {
		lower = lower[:idx]
	}
	lower = strings.TrimSpace(lower)

	switch lower {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp", "image/x-ms-bmp":
		return ".bmp"
	case "image/avif":
		return ".avif"
	case "image/tiff":
		return ".tiff"
	default:
		return ""
	}
}

// extensionForFormat maps an image.DecodeConfig format name to an extension.
func extensionForFormat(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png", "gif", "webp", "bmp":
		return "." + format
	default:
		return ""
	}
}

// mediaTypeForFormat maps an image.DecodeConfig format name to a MIME type.
func mediaTypeForFormat(format string) string {
	if format == "" {
		return ""
	}
	return "image/" + format
}

// sanitizeFilename removes or replaces characters that are unsafe for filenames.
func sanitizeFilename(filename string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := filename
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}

	if len(result) > 200 {
		result = result[:200]
	}

	if result == "" || result == "." || result == ".." {
		result = "image"
	}

	return result
}

// DefaultFilename names image data after its SHA-256 digest, e.g.
// "3a7bd3e2...c9.png".
func DefaultFilename(data []byte, ext string) string {
	if ext == "" {
		ext = ".png"
	}
	return core.ComputeSHA256FromBytes(data) + ext
}

// thumbnailPath derives the preview file name for an image path:
// "out/cat.png" becomes "out/cat.thumb.png".
func thumbnailPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + ".thumb.png"
}

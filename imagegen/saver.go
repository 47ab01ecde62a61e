// saver.go implements the Saver that resolves a finished image to bytes and
// writes it to disk. It composes:
//   - downloader.go: fetching images returned as URLs
//   - inspect.go: format sniffing and thumbnails
//   - core.ComputeSHA256FromBytes: default file names
//   - core.ComputeSHA256: verifying the written file

package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"diffusionto/core"
	"diffusionto/diffusion"
	"diffusionto/logging"

	"go.uber.org/zap"
)

// SaverConfig holds configuration for the Saver.
type SaverConfig struct {
	// OutputDir receives images saved without an explicit path.
	// Default: current directory
	OutputDir string

	// ThumbnailSize, when positive, also writes a PNG preview whose longer
	// side has this many pixels next to each saved image.
	ThumbnailSize int
}

// SaveResult describes a written image.
type SaveResult struct {
	Path          string
	ThumbnailPath string
	Size          int64
	SHA256        string
	Info          ImageInfo
}

// Saver writes finished images to disk.
//
// Thread Safety: Saver is safe for concurrent use as long as callers do not
// write the same path concurrently.
type Saver struct {
	downloader *Downloader
	config     SaverConfig
	logger     *logging.Logger
}

// NewSaver creates a Saver. downloader may be nil when every image is known
// to arrive inline; a URL image then fails with an error.
func NewSaver(downloader *Downloader, config SaverConfig, logger *logging.Logger) *Saver {
	if config.OutputDir == "" {
		config.OutputDir = core.DefaultOutputDir
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Saver{
		downloader: downloader,
		config:     config,
		logger:     logger.Named("saver"),
	}
}

// Resolve returns the image bytes along with the media type the API
// declared for them: the decoded inline payload, or the downloaded file when
// the API returned a URL.
func (s *Saver) Resolve(ctx context.Context, img *diffusion.Image) ([]byte, string, error) {
	if img == nil {
		return nil, "", fmt.Errorf("imagegen: image cannot be nil")
	}
	if !img.IsURL() {
		data, err := img.Bytes()
		return data, img.MediaType(), err
	}
	if s.downloader == nil {
		return nil, "", fmt.Errorf("imagegen: image is a URL but no downloader is configured")
	}
	return s.downloader.DownloadBytes(ctx, img.Raw)
}

// Save writes img to path. With an empty path the file is named after the
// SHA-256 of its contents, with the extension of the sniffed format, inside
// the configured output directory. Data in a format Inspect does not know is
// written unchanged, named after the declared media type (or .png), and gets
// no thumbnail. Parent directories are created as needed and the file is
// written atomically.
func (s *Saver) Save(ctx context.Context, img *diffusion.Image, path string) (*SaveResult, error) {
	startTime := time.Now()

	data, declared, err := s.Resolve(ctx, img)
	if err != nil {
		return nil, err
	}
	// Formats the image package cannot read are still written as delivered.
	info, err := Inspect(data)
	recognized := err == nil
	if !recognized {
		s.logger.Warn("unrecognized image format, writing bytes as delivered",
			zap.String("declared", declared),
			zap.Error(err),
		)
		info = ImageInfo{
			Extension: extensionFromContentType(declared),
			MediaType: declared,
		}
	} else if ext := extensionFromContentType(declared); ext != "" && ext != info.Extension {
		s.logger.Warn("declared media type does not match image data",
			zap.String("declared", declared),
			zap.String("detected", info.MediaType),
		)
	}

	if path == "" {
		path = filepath.Join(s.config.OutputDir, DefaultFilename(data, info.Extension))
	}

	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}

	expected := core.ComputeSHA256FromBytes(data)
	written, err := core.ComputeSHA256(path)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to verify %s: %w", path, err)
	}
	if written != expected {
		return nil, fmt.Errorf("imagegen: checksum mismatch for %s: got %s, want %s", path, written, expected)
	}

	result := &SaveResult{
		Path:   path,
		Size:   int64(len(data)),
		SHA256: expected,
		Info:   info,
	}

	if s.config.ThumbnailSize > 0 && recognized {
		var buf bytes.Buffer
		if err := WriteThumbnail(&buf, data, s.config.ThumbnailSize); err != nil {
			return nil, err
		}
		thumb := thumbnailPath(path)
		if err := writeFileAtomic(thumb, buf.Bytes()); err != nil {
			return nil, err
		}
		result.ThumbnailPath = thumb
	}

	s.logger.Info("image saved",
		zap.String("path", result.Path),
		zap.String("format", info.Format),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.String("size", core.FormatBytes(result.Size)),
		zap.Duration("duration", time.Since(startTime)),
	)
	return result, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("imagegen: failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+sanitizeFilename(filepath.Base(path))+".tmp-*")
	if err != nil {
		return fmt.Errorf("imagegen: failed to create image file: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("imagegen: failed to write image data: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("imagegen: failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("imagegen: failed to move image into place: %w", err)
	}
	return nil
}

// downloader.go implements the Downloader that fetches images the API
// returns as URLs instead of inline payloads.

package imagegen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"diffusionto/core"
	"diffusionto/diffusion"
	"diffusionto/logging"

	"go.uber.org/zap"
)

// MaxDownloadBytes caps a single image download.
const MaxDownloadBytes = 64 << 20

// Downloader handles downloading generated images from URLs.
//
// Thread Safety: Downloader is safe for concurrent use.
// Each download creates its own HTTP request.
type Downloader struct {
	client *http.Client
	logger *logging.Logger
}

// NewDownloader creates a downloader using the HTTP and TLS settings of cfg.
func NewDownloader(cfg *core.Config, logger *logging.Logger) (*Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewDownloaderWithClient(core.GetDefaultHTTPClient(cfg), logger), nil
}

// NewDownloaderWithClient creates a downloader around an existing client.
// A nil client gets a 60 second timeout; a nil logger discards logs.
func NewDownloaderWithClient(client *http.Client, logger *logging.Logger) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Downloader{
		client: client,
		logger: logger.Named("downloader"),
	}
}

// DownloadBytes downloads an image and returns the raw bytes along with the
// Content-Type header value.
//
// Transport failures match diffusion.ErrNetwork; non-200 answers are returned
// as *diffusion.APIError.
func (d *Downloader) DownloadBytes(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("imagegen: URL cannot be empty")
	}

	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: download image: %w", diffusion.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &diffusion.APIError{
			StatusCode: resp.StatusCode,
			Message:    "image download failed",
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read image: %w", diffusion.ErrNetwork, err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, "", fmt.Errorf("%w: image exceeds %s", diffusion.ErrDecode, core.FormatBytes(MaxDownloadBytes))
	}

	d.logger.Debug("image downloaded",
		zap.Int("size_bytes", len(data)),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Duration("duration", time.Since(startTime)),
	)
	return data, resp.Header.Get("Content-Type"), nil
}

// client.go implements the Client that talks to the diffusion.to HTTP API.
// It composes:
//   - request.go: ImageRequest validation and wire encoding
//   - image.go: status response decoding
//   - atoms.go: API key and base URL validation
//   - logging.Logger: structured logging

package diffusion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"diffusionto/logging"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the production API host.
	DefaultBaseURL = "https://diffusion.to"

	// DefaultPollInterval is the pause between status checks in CheckAndWait.
	DefaultPollInterval = 5 * time.Second

	// DefaultRequestTimeout bounds a single HTTP exchange when NewClient has to
	// build its own http.Client.
	DefaultRequestTimeout = 60 * time.Second

	// NoTimeout makes CheckAndWait poll until the job finishes or ctx ends.
	NoTimeout time.Duration = -1

	imagePath  = "/api/image"
	statusPath = "/api/image/status"

	// Finished images come back inline as base64, so the response cap is
	// generous.
	maxResponseBytes = 64 << 20
	maxErrorMessage  = 512
)

// ClientConfig holds configuration for the diffusion.to client.
type ClientConfig struct {
	// BaseURL is the scheme and host the API paths are appended to.
	BaseURL string

	// PollInterval is the pause between status checks in CheckAndWait.
	PollInterval time.Duration

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// DefaultClientConfig returns the production configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:      DefaultBaseURL,
		PollInterval: DefaultPollInterval,
		UserAgent:    "diffusionto-go",
	}
}

// Client submits image jobs and polls for their results.
//
// Thread-Safety:
//   - Client is safe for concurrent use
//   - Client holds no per-job state; tokens are the only job handle
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	config     ClientConfig
}

// NewClient creates a client authenticated with apiKey.
//
// Parameters:
//   - apiKey: diffusion.to API key, sent as a bearer token
//   - httpClient: HTTP client for API requests; nil uses one with DefaultRequestTimeout
//   - logger: structured logger; nil discards logs
//   - config: client configuration; zero fields take their defaults
//
// Returns an ErrInvalidParameter error if the API key or base URL is unusable.
func NewClient(apiKey string, httpClient *http.Client, logger *logging.Logger, config ClientConfig) (*Client, error) {
	if err := ValidateAPIKey(apiKey); err != nil {
		return nil, err
	}

	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	baseURL, err := validateBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}
	config.BaseURL = baseURL

	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.Named("diffusion-client"),
		config:     config,
	}, nil
}

// NewDefaultClient creates a client for the production API with default
// settings and no logging.
func NewDefaultClient(apiKey string) (*Client, error) {
	return NewClient(apiKey, nil, nil, DefaultClientConfig())
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PollInterval returns the pause CheckAndWait uses between status checks.
func (c *Client) PollInterval() time.Duration {
	return c.config.PollInterval
}

// RequestImage validates request and submits it. It returns the job token on
// success. Invalid requests fail with ErrInvalidParameter without touching
// the network.
func (c *Client) RequestImage(ctx context.Context, request ImageRequest) (Token, error) {
	if err := request.Validate(); err != nil {
		return "", err
	}

	startTime := time.Now()
	log := c.logger.With(
		zap.String("model", request.Model().String()),
		zap.Int("steps", int(request.Steps())),
		zap.String("size", request.Size().String()),
		zap.String("orientation", request.Orientation().String()),
		zap.Int("prompt_length", len(request.Prompt())),
	)
	log.Info("submitting image request")

	status, body, err := c.post(ctx, imagePath, request)
	if err != nil {
		log.Error("image request failed", zap.Error(err))
		return "", err
	}
	if status < 200 || status >= 300 {
		apiErr := newAPIError(status, body)
		log.Error("image request rejected",
			zap.Int("status_code", status),
			zap.String("message", apiErr.Message),
		)
		return "", apiErr
	}

	var resp tokenBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", decodeError("image response", err)
	}
	if resp.Token.IsZero() {
		return "", decodeError("image response has no token", nil)
	}

	log.Info("image request accepted",
		zap.String("token", resp.Token.String()),
		zap.Duration("duration", time.Since(startTime)),
	)
	return resp.Token, nil
}

// Check asks once for the state of token.
//
// Status mapping:
//   - 202, 204: pending
//   - 200, 201: ready with the image, or failed when the body reports a failure
//   - anything else: ErrAPI
func (c *Client) Check(ctx context.Context, token Token) (Status, error) {
	if token.IsZero() {
		return Status{}, newParameterError("token", "", "must not be empty")
	}

	log := c.logger.With(zap.String("token", token.String()))

	status, body, err := c.post(ctx, statusPath, tokenBody{Token: token})
	if err != nil {
		return Status{}, err
	}

	switch status {
	case http.StatusAccepted, http.StatusNoContent:
		log.Debug("image not ready", zap.Int("status_code", status))
		return Status{State: StatePending}, nil
	case http.StatusOK, http.StatusCreated:
		result, err := parseStatusBody(body)
		if err != nil {
			return Status{}, err
		}
		log.Debug("status checked", zap.Stringer("state", result.State))
		return result, nil
	default:
		apiErr := newAPIError(status, body)
		log.Warn("status check rejected",
			zap.Int("status_code", status),
			zap.String("message", apiErr.Message),
		)
		return Status{}, apiErr
	}
}

// CheckAndWait polls token until the job is ready or failed, the timeout
// elapses, or ctx is done.
//
// The deadline is fixed when the call starts and is re-tested before every
// check after the first, so no request is sent once it has passed. A zero
// timeout performs exactly one check; NoTimeout (or any negative value) polls
// without a deadline. The
// first error from Check is returned as is and ends the wait. A failed job
// yields a *JobFailedError.
func (c *Client) CheckAndWait(ctx context.Context, token Token, timeout time.Duration) (*Image, error) {
	if token.IsZero() {
		return nil, newParameterError("token", "", "must not be empty")
	}

	startTime := time.Now()
	bounded := timeout >= 0
	deadline := startTime.Add(timeout)

	log := c.logger.With(
		zap.String("token", token.String()),
		zap.Duration("timeout", timeout),
	)
	log.Info("waiting for image")

	for attempt := 1; ; attempt++ {
		if attempt > 1 && bounded && !time.Now().Before(deadline) {
			log.Warn("gave up waiting for image", zap.Int("attempts", attempt-1))
			return nil, &TimeoutError{Token: token, Waited: time.Since(startTime), Attempts: attempt - 1}
		}

		result, err := c.Check(ctx, token)
		if err != nil {
			log.Error("status check failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}

		switch result.State {
		case StateReady:
			log.Info("image ready",
				zap.Int("attempts", attempt),
				zap.Duration("waited", time.Since(startTime)),
				zap.Uint64("image_id", result.Image.ID),
			)
			return result.Image, nil
		case StateFailed:
			log.Warn("image generation failed", zap.String("reason", result.Reason))
			return nil, &JobFailedError{Token: token, Reason: result.Reason}
		}

		wait := c.config.PollInterval
		if bounded {
			wait = max(min(wait, time.Until(deadline)), 0)
		}

		log.Debug("image pending", zap.Int("attempt", attempt), zap.Duration("next_check_in", wait))
		if err := sleepContext(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// Generate submits request and waits for the result. The token is returned
// alongside any wait error so the caller can resume with CheckAndWait.
func (c *Client) Generate(ctx context.Context, request ImageRequest, timeout time.Duration) (Token, *Image, error) {
	token, err := c.RequestImage(ctx, request)
	if err != nil {
		return "", nil, err
	}
	img, err := c.CheckAndWait(ctx, token, timeout)
	return token, img, err
}

// post sends body as JSON and returns the status code and the response body.
// Transport failures come back wrapped in ErrNetwork.
func (c *Client) post(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("diffusion: failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, networkError("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug("sending request", zap.String("endpoint", endpoint), zap.Int("size_bytes", len(payload)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, networkError("POST "+path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, networkError("read response", err)
	}
	return resp.StatusCode, respBody, nil
}

// newAPIError builds an APIError from a non-success response, preferring the
// vendor's JSON "message" or "error" field over the raw body.
func newAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	message := ""
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Message != "":
			message = parsed.Message
		case parsed.Error != nil:
			if s, ok := parsed.Error.(string); ok {
				message = s
			} else if b, err := json.Marshal(parsed.Error); err == nil {
				message = string(b)
			}
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if len(message) > maxErrorMessage {
		message = message[:maxErrorMessage] + "..."
	}
	return &APIError{StatusCode: status, Message: message}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable reports whether err is worth retrying later with the same
// token: network failures and server-side (5xx) API errors.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrNetwork) {
		return !errors.Is(err, context.Canceled)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

package diffusion

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Image is a finished generation as returned by the status endpoint.
//
// Raw is either an http(s) URL or a base64 payload, usually in data URL form
// ("data:image/png;base64,iVBOR..."). Use Bytes for the latter; URLs have to
// be downloaded (see the imagegen package).
type Image struct {
	ID          uint64 `json:"id"`
	Steps       Steps  `json:"steps"`
	Size        Size   `json:"size"`
	Model       Model  `json:"model"`
	CreditsUsed uint64 `json:"credits_used"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	Raw         string `json:"raw"`
}

// IsURL reports whether Raw points at a remote file rather than carrying the
// image inline.
func (img *Image) IsURL() bool {
	lower := strings.ToLower(strings.TrimSpace(img.Raw))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// MediaType returns the MIME type declared by a data URL payload
// ("image/png"), or "" when Raw carries none.
func (img *Image) MediaType() string {
	raw := strings.TrimSpace(img.Raw)
	if !strings.HasPrefix(raw, "data:") {
		return ""
	}
	header, _, found := strings.Cut(raw[len("data:"):], ",")
	if !found {
		return ""
	}
	mediaType, _, _ := strings.Cut(header, ";")
	return strings.ToLower(mediaType)
}

// Bytes decodes the inline base64 payload. Anything before the last comma is
// treated as a data URL header and dropped. URLs and malformed payloads yield
// an ErrDecode error.
func (img *Image) Bytes() ([]byte, error) {
	if img.IsURL() {
		return nil, decodeError("image is a URL, not an inline payload", nil)
	}

	payload := strings.TrimSpace(img.Raw)
	if idx := strings.LastIndex(payload, ","); idx != -1 {
		payload = payload[idx+1:]
	}
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, decodeError("image payload is empty", nil)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, decodeError("image payload is not valid base64", err)
		}
	}
	return data, nil
}

// JobState is the lifecycle state of a submitted job as seen by Check.
type JobState int

const (
	// StatePending means the vendor is still working on the image.
	StatePending JobState = iota
	// StateReady means the image is complete; Status.Image is set.
	StateReady
	// StateFailed means the vendor gave up; Status.Reason explains why.
	StateFailed
)

func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further polling can change the state.
func (s JobState) IsTerminal() bool {
	return s == StateReady || s == StateFailed
}

// Status is the outcome of a single Check.
type Status struct {
	State  JobState
	Image  *Image
	Reason string
}

// tokenBody is the token envelope used by both endpoints.
type tokenBody struct {
	Token Token `json:"token"`
}

// statusResponse is the body of a 200/201 status answer. The vendor puts the
// finished image under "data"; failures are reported through "status",
// "error" or "message".
type statusResponse struct {
	Data    *Image `json:"data"`
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// parseStatusBody interprets a successful status response.
func parseStatusBody(body []byte) (Status, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Status{State: StatePending}, nil
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Status{}, decodeError("status response", err)
	}

	state := strings.ToLower(strings.TrimSpace(resp.Status))
	switch {
	case resp.Error != "":
		return Status{State: StateFailed, Reason: resp.Error}, nil
	case state == "failed" || state == "error" || state == "cancelled" || state == "canceled":
		reason := resp.Message
		if reason == "" {
			reason = "job " + state
		}
		return Status{State: StateFailed, Reason: reason}, nil
	case state == "pending" || state == "processing" || state == "queued":
		return Status{State: StatePending}, nil
	}

	if resp.Data == nil {
		return Status{}, decodeError("status response has no image data", nil)
	}
	if strings.TrimSpace(resp.Data.Raw) == "" {
		return Status{State: StatePending}, nil
	}
	return Status{State: StateReady, Image: resp.Data}, nil
}

// UnmarshalJSON decodes the vendor representation without validating the
// enumerations, so a model or size added upstream does not break decoding of
// an otherwise finished image. Numeric fields may arrive quoted.
func (img *Image) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID          json.Number `json:"id"`
		Steps       json.Number `json:"steps"`
		Size        string      `json:"size"`
		Model       string      `json:"model"`
		CreditsUsed json.Number `json:"credits_used"`
		CreatedAt   string      `json:"created_at"`
		UpdatedAt   string      `json:"updated_at"`
		Raw         string      `json:"raw"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	id, err := parseUint("id", wire.ID)
	if err != nil {
		return err
	}
	credits, err := parseUint("credits_used", wire.CreditsUsed)
	if err != nil {
		return err
	}
	steps, err := parseUint("steps", wire.Steps)
	if err != nil {
		return err
	}

	*img = Image{
		ID:          id,
		Steps:       Steps(steps),
		Size:        Size(normalizeName(wire.Size)),
		Model:       Model(normalizeName(wire.Model)),
		CreditsUsed: credits,
		CreatedAt:   wire.CreatedAt,
		UpdatedAt:   wire.UpdatedAt,
		Raw:         wire.Raw,
	}
	return nil
}

func parseUint(field string, n json.Number) (uint64, error) {
	if n == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

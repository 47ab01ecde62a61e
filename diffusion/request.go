package diffusion

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength is the longest prompt or negative prompt accepted, in runes.
const MaxPromptLength = 1000

// Defaults applied by NewImageRequest.
const (
	DefaultSteps       = Steps50
	DefaultModel       = ModelBeautyRealism
	DefaultSize        = SizeSmall
	DefaultOrientation = OrientationSquare
)

// ImageRequest holds the parameters of one image generation job.
//
// ImageRequest is an immutable value: every With method returns an updated
// copy and leaves the receiver untouched. When a With method rejects its
// argument it returns the receiver unchanged together with an
// ErrInvalidParameter error, so a failed update never leaves a half-applied
// request behind.
//
// Example:
//
//	req := NewImageRequest("a lighthouse at dusk")
//	req, err := req.WithModel(ModelDreamReality)
//	if err != nil {
//	    return err
//	}
type ImageRequest struct {
	prompt      string
	negative    string
	steps       Steps
	model       Model
	size        Size
	orientation Orientation
}

// NewImageRequest returns a request for prompt with the default steps,
// model, size and orientation. The prompt is validated when the request is
// submitted (or by Validate), not here.
func NewImageRequest(prompt string) ImageRequest {
	return ImageRequest{
		prompt:      prompt,
		steps:       DefaultSteps,
		model:       DefaultModel,
		size:        DefaultSize,
		orientation: DefaultOrientation,
	}
}

// Prompt returns the prompt text.
func (r ImageRequest) Prompt() string { return r.prompt }

// NegativePrompt returns the negative prompt and whether one is set.
func (r ImageRequest) NegativePrompt() (string, bool) { return r.negative, r.negative != "" }

// Steps returns the configured step count.
func (r ImageRequest) Steps() Steps { return r.steps }

// Model returns the configured model.
func (r ImageRequest) Model() Model { return r.model }

// Size returns the configured size.
func (r ImageRequest) Size() Size { return r.size }

// Orientation returns the configured orientation.
func (r ImageRequest) Orientation() Orientation { return r.orientation }

// WithNegativePrompt returns a copy with the negative prompt set. An empty
// string clears it. Prompts longer than MaxPromptLength are rejected.
func (r ImageRequest) WithNegativePrompt(negative string) (ImageRequest, error) {
	if err := validatePromptText("negative_prompt", negative, false); err != nil {
		return r, err
	}
	r.negative = negative
	return r, nil
}

// WithSteps returns a copy with the step count set.
func (r ImageRequest) WithSteps(steps Steps) (ImageRequest, error) {
	if !steps.IsValid() {
		return r, newParameterError("steps", steps.String(), "must be one of "+joinValues(AllSteps()))
	}
	r.steps = steps
	return r, nil
}

// WithModel returns a copy with the model set.
func (r ImageRequest) WithModel(model Model) (ImageRequest, error) {
	if !model.IsValid() {
		return r, newParameterError("model", string(model), "must be one of "+joinValues(AllModels()))
	}
	r.model = model
	return r, nil
}

// WithSize returns a copy with the size set.
func (r ImageRequest) WithSize(size Size) (ImageRequest, error) {
	if !size.IsValid() {
		return r, newParameterError("size", string(size), "must be one of "+joinValues(AllSizes()))
	}
	r.size = size
	return r, nil
}

// WithOrientation returns a copy with the orientation set.
func (r ImageRequest) WithOrientation(orientation Orientation) (ImageRequest, error) {
	if !orientation.IsValid() {
		return r, newParameterError("orientation", string(orientation), "must be one of "+joinValues(AllOrientations()))
	}
	r.orientation = orientation
	return r, nil
}

// Validate checks every field. The zero ImageRequest fails on its empty prompt.
func (r ImageRequest) Validate() error {
	if err := validatePromptText("prompt", r.prompt, true); err != nil {
		return err
	}
	if err := validatePromptText("negative_prompt", r.negative, false); err != nil {
		return err
	}
	if !r.steps.IsValid() {
		return newParameterError("steps", r.steps.String(), "must be one of "+joinValues(AllSteps()))
	}
	if !r.model.IsValid() {
		return newParameterError("model", string(r.model), "must be one of "+joinValues(AllModels()))
	}
	if !r.size.IsValid() {
		return newParameterError("size", string(r.size), "must be one of "+joinValues(AllSizes()))
	}
	if !r.orientation.IsValid() {
		return newParameterError("orientation", string(r.orientation), "must be one of "+joinValues(AllOrientations()))
	}
	return nil
}

// wireRequest is the JSON body of POST /api/image.
type wireRequest struct {
	Prompt      string      `json:"prompt"`
	Negative    string      `json:"negative,omitempty"`
	Steps       Steps       `json:"steps"`
	Model       Model       `json:"model"`
	Size        Size        `json:"size"`
	Orientation Orientation `json:"orientation"`
}

// MarshalJSON encodes the request in the vendor's wire format.
func (r ImageRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRequest{
		Prompt:      r.prompt,
		Negative:    r.negative,
		Steps:       r.steps,
		Model:       r.model,
		Size:        r.size,
		Orientation: r.orientation,
	})
}

// validatePromptText checks length and, when required, non-emptiness.
func validatePromptText(field, text string, required bool) error {
	if required && strings.TrimSpace(text) == "" {
		return newParameterError(field, "", "must not be empty")
	}
	if !utf8.ValidString(text) {
		return newParameterError(field, "", "must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(text); n > MaxPromptLength {
		return newParameterError(field, "", fmt.Sprintf("%d characters exceeds maximum of %d", n, MaxPromptLength))
	}
	return nil
}

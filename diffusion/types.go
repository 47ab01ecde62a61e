// Package diffusion is a client for the diffusion.to image generation API.
//
// types.go contains the closed enumerations accepted by the API. Each type
// parses user input, rejects values outside its set with an
// ErrInvalidParameter error and marshals to the vendor wire form.
package diffusion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Steps is the number of diffusion steps the vendor runs.
type Steps int

const (
	Steps50  Steps = 50
	Steps100 Steps = 100
	Steps150 Steps = 150
	Steps200 Steps = 200
)

// AllSteps lists every accepted step count in ascending order.
func AllSteps() []Steps {
	return []Steps{Steps50, Steps100, Steps150, Steps200}
}

// IsValid reports whether s is one of the accepted step counts.
func (s Steps) IsValid() bool {
	switch s {
	case Steps50, Steps100, Steps150, Steps200:
		return true
	}
	return false
}

// String returns the step count in decimal.
func (s Steps) String() string {
	return strconv.Itoa(int(s))
}

// ParseSteps converts a decimal string such as "150" to Steps.
func ParseSteps(value string) (Steps, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, newParameterError("steps", value, "must be one of "+joinValues(AllSteps()))
	}
	return StepsFromInt(n)
}

// StepsFromInt validates n against the accepted step counts.
func StepsFromInt(n int) (Steps, error) {
	s := Steps(n)
	if !s.IsValid() {
		return 0, newParameterError("steps", strconv.Itoa(n), "must be one of "+joinValues(AllSteps()))
	}
	return s, nil
}

// UnmarshalJSON accepts the numeric wire form and rejects unknown counts.
func (s *Steps) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("steps: %w", err)
	}
	parsed, err := StepsFromInt(n)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Model is one of the named image styles offered by the vendor.
type Model string

const (
	ModelBeautyRealism    Model = "beauty_realism"
	ModelAestheticRealism Model = "aesthetic_realism"
	ModelAnimeRealism     Model = "anime_realism"
	ModelAnalogRealism    Model = "analog_realism"
	ModelDreamReality     Model = "dream_reality"
	ModelStableDiffusion  Model = "stable_diffusion"
	ModelToonAnimated     Model = "toon_animated"
	ModelFantasyAnimated  Model = "fantasy_animated"
)

// AllModels lists every model in the order the vendor documents them.
func AllModels() []Model {
	return []Model{
		ModelBeautyRealism,
		ModelAestheticRealism,
		ModelAnimeRealism,
		ModelAnalogRealism,
		ModelDreamReality,
		ModelStableDiffusion,
		ModelToonAnimated,
		ModelFantasyAnimated,
	}
}

// IsValid reports whether m is a known model.
func (m Model) IsValid() bool {
	for _, known := range AllModels() {
		if m == known {
			return true
		}
	}
	return false
}

// String returns the snake_case wire name.
func (m Model) String() string {
	return string(m)
}

// FlagName returns the kebab-case spelling used on the command line.
func (m Model) FlagName() string {
	return strings.ReplaceAll(string(m), "_", "-")
}

// ParseModel accepts the wire name ("anime_realism") or the flag spelling
// ("anime-realism"), case-insensitively.
func ParseModel(value string) (Model, error) {
	m := Model(normalizeName(value))
	if !m.IsValid() {
		return "", newParameterError("model", value, "must be one of "+joinValues(AllModels()))
	}
	return m, nil
}

// UnmarshalText implements encoding.TextUnmarshaler with validation.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := ParseModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Size is the output resolution class.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// AllSizes lists every size from smallest to largest.
func AllSizes() []Size {
	return []Size{SizeSmall, SizeMedium, SizeLarge}
}

// IsValid reports whether s is a known size.
func (s Size) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

func (s Size) String() string {
	return string(s)
}

// ParseSize parses a size name case-insensitively.
func ParseSize(value string) (Size, error) {
	s := Size(normalizeName(value))
	if !s.IsValid() {
		return "", newParameterError("size", value, "must be one of "+joinValues(AllSizes()))
	}
	return s, nil
}

// UnmarshalText implements encoding.TextUnmarshaler with validation.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Orientation is the aspect of the generated image.
type Orientation string

const (
	OrientationSquare    Orientation = "square"
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

// AllOrientations lists every orientation.
func AllOrientations() []Orientation {
	return []Orientation{OrientationSquare, OrientationLandscape, OrientationPortrait}
}

// IsValid reports whether o is a known orientation.
func (o Orientation) IsValid() bool {
	switch o {
	case OrientationSquare, OrientationLandscape, OrientationPortrait:
		return true
	}
	return false
}

func (o Orientation) String() string {
	return string(o)
}

// ParseOrientation parses an orientation name case-insensitively.
func ParseOrientation(value string) (Orientation, error) {
	o := Orientation(normalizeName(value))
	if !o.IsValid() {
		return "", newParameterError("orientation", value, "must be one of "+joinValues(AllOrientations()))
	}
	return o, nil
}

// UnmarshalText implements encoding.TextUnmarshaler with validation.
func (o *Orientation) UnmarshalText(text []byte) error {
	parsed, err := ParseOrientation(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Token is the opaque handle the vendor returns for a submitted job.
type Token string

func (t Token) String() string {
	return string(t)
}

// IsZero reports whether the token is empty.
func (t Token) IsZero() bool {
	return strings.TrimSpace(string(t)) == ""
}

// normalizeName lowercases and maps the kebab-case flag spelling to snake_case.
func normalizeName(value string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
}

// joinValues renders an enumeration for error messages.
func joinValues[T fmt.Stringer](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

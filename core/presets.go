package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"diffusionto/diffusion"

	"gopkg.in/yaml.v3"
)

// Preset is a named set of request parameters. Empty fields leave the
// request's current value in place.
//
// Example presets file:
//
//	presets:
//	  poster:
//	    steps: 150
//	    model: dream-reality
//	    size: large
//	    orientation: portrait
//	    negative: "text, watermark"
type Preset struct {
	Steps       int    `yaml:"steps"`
	Model       string `yaml:"model"`
	Size        string `yaml:"size"`
	Orientation string `yaml:"orientation"`
	Negative    string `yaml:"negative"`
}

// Presets maps preset names to their parameters.
type Presets map[string]Preset

type presetsFile struct {
	Presets Presets `yaml:"presets"`
}

// LoadPresets reads and validates a presets file. An empty path yields no
// presets.
func LoadPresets(path string) (Presets, error) {
	if path == "" {
		return Presets{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrPresetsInvalid(path, "file not found")
		}
		return nil, ErrPresetsInvalid(path, err.Error())
	}
	return ParsePresets(path, data)
}

// ParsePresets decodes presets YAML. source names the data in error messages.
func ParsePresets(source string, data []byte) (Presets, error) {
	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, ErrPresetsInvalid(source, err.Error())
	}
	if file.Presets == nil {
		return Presets{}, nil
	}

	base := diffusion.NewImageRequest("preset check")
	for name, preset := range file.Presets {
		if _, err := preset.Apply(base); err != nil {
			return nil, ErrPresetsInvalid(source, fmt.Sprintf("preset %q: %v", name, err))
		}
	}
	return file.Presets, nil
}

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get looks up a preset by name.
func (p Presets) Get(name string) (Preset, error) {
	preset, ok := p[name]
	if !ok {
		return Preset{}, ErrPresetNotFound(name, p.Names())
	}
	return preset, nil
}

// Apply returns req with the preset's non-empty fields set.
func (p Preset) Apply(req diffusion.ImageRequest) (diffusion.ImageRequest, error) {
	var err error
	if p.Steps != 0 {
		steps, err := diffusion.StepsFromInt(p.Steps)
		if err != nil {
			return req, err
		}
		if req, err = req.WithSteps(steps); err != nil {
			return req, err
		}
	}
	if p.Model != "" {
		model, err := diffusion.ParseModel(p.Model)
		if err != nil {
			return req, err
		}
		if req, err = req.WithModel(model); err != nil {
			return req, err
		}
	}
	if p.Size != "" {
		size, err := diffusion.ParseSize(p.Size)
		if err != nil {
			return req, err
		}
		if req, err = req.WithSize(size); err != nil {
			return req, err
		}
	}
	if p.Orientation != "" {
		orientation, err := diffusion.ParseOrientation(p.Orientation)
		if err != nil {
			return req, err
		}
		if req, err = req.WithOrientation(orientation); err != nil {
			return req, err
		}
	}
	if p.Negative != "" {
		if req, err = req.WithNegativePrompt(p.Negative); err != nil {
			return req, err
		}
	}
	return req, nil
}

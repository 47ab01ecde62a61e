package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"diffusionto/core"
	"diffusionto/diffusion"
)

// errUsage marks command line mistakes; run reports them with exit code 2.
var errUsage = errors.New("usage error")

// errFlagsReported marks parse errors the flag package has already printed
// together with the usage text.
var errFlagsReported = errors.New("flags already reported")

// cliOptions holds parsed command line flags. Zero values mean "not given"
// unless the flag appears in set.
type cliOptions struct {
	apiKey      string
	prompt      string
	negative    string
	steps       int
	model       string
	size        string
	orientation string
	preset      string

	out       string
	save      bool
	thumbnail int

	token string
	wait  string

	envFile     string
	historyDB   string
	listHistory int
	checkConfig bool
	offline     bool
	version     bool

	// set records which flags were given explicitly.
	set map[string]bool
}

// parseFlags parses args. flag.ErrHelp is returned unchanged for -h.
func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{set: make(map[string]bool)}

	fs := flag.NewFlagSet("diffusionto", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: diffusionto --prompt TEXT [options]\n")
		fmt.Fprintf(fs.Output(), "       diffusionto --token TOKEN [--wait DURATION] [--out PATH]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.apiKey, "api-key", "", "diffusion.to API key (default $DIFFUSION_API_KEY)")
	fs.StringVar(&opts.prompt, "prompt", "", "text describing the image")
	fs.StringVar(&opts.negative, "negative", "", "things to keep out of the image")
	fs.IntVar(&opts.steps, "steps", 0, "inference steps: "+joinNames(diffusion.AllSteps()))
	fs.StringVar(&opts.model, "model", "", "model: "+joinNames(diffusion.AllModels()))
	fs.StringVar(&opts.size, "size", "", "size: "+joinNames(diffusion.AllSizes()))
	fs.StringVar(&opts.orientation, "orientation", "", "orientation: "+joinNames(diffusion.AllOrientations()))
	fs.StringVar(&opts.preset, "preset", "", "apply a named preset from $DIFFUSION_PRESETS_FILE")

	fs.StringVar(&opts.out, "out", "", "write the decoded image to this path")
	fs.BoolVar(&opts.save, "save", false, "write the image to the output directory, named by its SHA-256")
	fs.IntVar(&opts.thumbnail, "thumbnail", 0, "also write a PNG preview with this longest side in pixels")

	fs.StringVar(&opts.token, "token", "", "poll an existing job instead of submitting a new one")
	fs.StringVar(&opts.wait, "wait", "", "how long to wait for the image, e.g. 90s or 5m; negative waits forever (default $DIFFUSION_WAIT_TIMEOUT)")

	fs.StringVar(&opts.envFile, "env-file", core.DefaultEnvFile, "dotenv file to load")
	fs.StringVar(&opts.historyDB, "history-db", "", "record jobs in this SQLite file (default $DIFFUSION_HISTORY_DB)")
	fs.IntVar(&opts.listHistory, "list-history", 0, "print the N most recent jobs and exit")
	fs.BoolVar(&opts.checkConfig, "check-config", false, "validate configuration and exit")
	fs.BoolVar(&opts.offline, "offline", false, "with --check-config, skip the network check")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w: %w", errUsage, errFlagsReported, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments: %s", errUsage, strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if opts.listHistory < 0 {
		return nil, fmt.Errorf("%w: --list-history must not be negative", errUsage)
	}
	if opts.thumbnail < 0 {
		return nil, fmt.Errorf("%w: --thumbnail must not be negative", errUsage)
	}
	return opts, nil
}

// applyTo merges flag overrides into cfg.
func (o *cliOptions) applyTo(cfg *core.Config) error {
	if o.set["api-key"] {
		cfg.APIKey = strings.TrimSpace(o.apiKey)
	}
	if o.set["history-db"] {
		cfg.HistoryDBPath = o.historyDB
	}
	if o.set["thumbnail"] {
		cfg.ThumbnailSize = o.thumbnail
	}
	if o.set["wait"] {
		wait, err := core.ParseDuration(o.wait)
		if err != nil {
			return fmt.Errorf("%w: invalid --wait %q: %w", errUsage, o.wait, err)
		}
		cfg.WaitTimeout = wait
	}
	return nil
}

// waitTimeout converts the configured wait into the client's convention,
// where any negative value means no deadline.
func waitTimeout(cfg *core.Config) time.Duration {
	if cfg.WaitTimeout < 0 {
		return diffusion.NoTimeout
	}
	return cfg.WaitTimeout
}

// buildRequest assembles the image request: defaults, then the preset, then
// explicit flags.
func (o *cliOptions) buildRequest(presets core.Presets) (diffusion.ImageRequest, error) {
	if strings.TrimSpace(o.prompt) == "" {
		return diffusion.ImageRequest{}, fmt.Errorf("%w: --prompt is required unless --token is given", errUsage)
	}

	req := diffusion.NewImageRequest(o.prompt)

	if o.preset != "" {
		preset, err := presets.Get(o.preset)
		if err != nil {
			return req, err
		}
		if req, err = preset.Apply(req); err != nil {
			return req, err
		}
	}

	var err error
	if o.set["negative"] {
		if req, err = req.WithNegativePrompt(o.negative); err != nil {
			return req, err
		}
	}
	if o.set["steps"] {
		steps, err := diffusion.StepsFromInt(o.steps)
		if err != nil {
			return req, err
		}
		if req, err = req.WithSteps(steps); err != nil {
			return req, err
		}
	}
	if o.set["model"] {
		model, err := diffusion.ParseModel(o.model)
		if err != nil {
			return req, err
		}
		if req, err = req.WithModel(model); err != nil {
			return req, err
		}
	}
	if o.set["size"] {
		size, err := diffusion.ParseSize(o.size)
		if err != nil {
			return req, err
		}
		if req, err = req.WithSize(size); err != nil {
			return req, err
		}
	}
	if o.set["orientation"] {
		orientation, err := diffusion.ParseOrientation(o.orientation)
		if err != nil {
			return req, err
		}
		if req, err = req.WithOrientation(orientation); err != nil {
			return req, err
		}
	}

	return req, req.Validate()
}

// writesFile reports whether the image should be saved rather than printed.
func (o *cliOptions) writesFile() bool {
	return o.out != "" || o.save
}

func joinNames[T fmt.Stringer](values []T) string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = v.String()
	}
	return strings.Join(names, ", ")
}

// Command diffusionto submits an image job to diffusion.to, waits for the
// result, and prints the image reference or writes the decoded file.
//
//	diffusionto --prompt "a lighthouse at dusk" --model analog-realism --out lighthouse.png
//	diffusionto --token 0b3f... --wait 10m --save
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"diffusionto/core"
	"diffusionto/core/validation"
	"diffusionto/db"
	"diffusionto/diffusion"
	"diffusionto/imagegen"
	"diffusionto/logging"
	"diffusionto/shutdown"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
// stdout only ever receives the result; everything else goes to stderr.
func run(parent context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return core.ExitCodeSuccess
	}
	if errors.Is(err, errFlagsReported) {
		return core.ExitCodeUsage
	}
	if err != nil {
		return fail(stderr, err)
	}

	if opts.version {
		fmt.Fprintf(stdout, "diffusionto %s\n", core.GetVersionInfo())
		return core.ExitCodeSuccess
	}

	if err := core.LoadEnvFile(opts.envFile); err != nil {
		return fail(stderr, err)
	}
	cfg, err := core.LoadConfig()
	if err != nil {
		return fail(stderr, err)
	}
	if err := opts.applyTo(cfg); err != nil {
		return fail(stderr, err)
	}

	logger, err := logging.New(logging.Options{
		Development: cfg.DevMode,
		Level:       logging.ParseLogLevelString(cfg.LogLevel, zapcore.InfoLevel),
		FilePath:    cfg.LogFile,
		File:        logging.DefaultFileWriterConfig(),
		Console:     zapcore.Lock(zapcore.AddSync(stderr)),
	})
	if err != nil {
		return fail(stderr, fmt.Errorf("failed to initialize logger: %w", err))
	}

	logger.Debug("logger initialized",
		zap.Bool("development", logger.IsDevelopment()),
		zap.String("log_file", logger.LogFilePath()),
	)

	manager := shutdown.NewManager(logger)
	ctx := manager.Start(parent)
	defer manager.Shutdown()
	manager.Register("logger", 90, func(context.Context) error {
		// Syncing stderr fails on some terminals; nothing to report.
		_ = logger.Sync()
		return nil
	})

	if opts.checkConfig {
		return checkConfig(ctx, cfg, opts, stderr)
	}

	history, err := openHistory(ctx, cfg, manager, logger)
	if err != nil {
		return fail(stderr, err)
	}

	if opts.listHistory > 0 {
		if !history.enabled() {
			return fail(stderr, fmt.Errorf("%w: --list-history needs --history-db or DIFFUSION_HISTORY_DB", errUsage))
		}
		jobs, err := history.repo.ListRecentJobs(ctx, opts.listHistory)
		if err != nil {
			return fail(stderr, err)
		}
		if err := printHistory(stdout, jobs); err != nil {
			return fail(stderr, err)
		}
		return core.ExitCodeSuccess
	}

	code := generate(ctx, cfg, opts, history, logger, stdout, stderr)
	if manager.Interrupted() {
		return core.ExitCodeSIGINT
	}
	return code
}

// generate submits (or resumes) a job, waits for it, and delivers the image.
func generate(ctx context.Context, cfg *core.Config, opts *cliOptions, history *historyRecorder, logger *logging.Logger, stdout, stderr io.Writer) int {
	var (
		req diffusion.ImageRequest
		err error
	)
	if opts.token == "" {
		presets, err := loadPresets(cfg, opts)
		if err != nil {
			return fail(stderr, err)
		}
		if req, err = opts.buildRequest(presets); err != nil {
			return fail(stderr, err)
		}
	}
	if err = cfg.Validate(); err != nil {
		return fail(stderr, err)
	}

	correlationID := uuid.NewString()
	logger = logger.With(zap.String("correlation_id", correlationID))
	history.logger = logger

	client, err := diffusion.NewClient(cfg.APIKey, core.GetDefaultHTTPClient(cfg), logger, cfg.ClientConfig())
	if err != nil {
		return fail(stderr, err)
	}

	startTime := time.Now()
	token := diffusion.Token(opts.token)
	if token.IsZero() {
		token, err = client.RequestImage(ctx, req)
		history.submitted(ctx, correlationID, token, req, err)
		if err != nil {
			return fail(stderr, err)
		}
		color.New(color.FgHiBlack).Fprintf(stderr, "submitted job %s\n", token)
	} else {
		history.resumed(ctx, correlationID, token)
	}

	img, err := client.CheckAndWait(ctx, token, waitTimeout(cfg))
	if err != nil {
		history.finished(ctx, token, nil, "", time.Since(startTime), err)
		if errors.Is(err, diffusion.ErrTimeout) {
			color.New(color.FgYellow).Fprintf(stderr, "job %s is still running; resume with --token %s\n", token, token)
		}
		return fail(stderr, err)
	}

	if !opts.writesFile() {
		history.finished(ctx, token, img, "", time.Since(startTime), nil)
		fmt.Fprintln(stdout, img.Raw)
		return core.ExitCodeSuccess
	}

	result, err := saveImage(ctx, cfg, opts, img, logger)
	if err != nil {
		history.finished(ctx, token, img, "", time.Since(startTime), err)
		return fail(stderr, err)
	}
	history.finished(ctx, token, img, result.Path, time.Since(startTime), nil)

	color.New(color.FgGreen).Fprintf(stderr, "saved %dx%d %s (%s)\n",
		result.Info.Width, result.Info.Height, result.Info.Format, core.FormatBytes(result.Size))
	if result.ThumbnailPath != "" {
		color.New(color.FgHiBlack).Fprintf(stderr, "thumbnail %s\n", result.ThumbnailPath)
	}
	fmt.Fprintln(stdout, result.Path)
	return core.ExitCodeSuccess
}

func saveImage(ctx context.Context, cfg *core.Config, opts *cliOptions, img *diffusion.Image, logger *logging.Logger) (*imagegen.SaveResult, error) {
	if opts.out == "" {
		if err := core.EnsureDir(cfg.OutputDir); err != nil {
			return nil, err
		}
	}
	downloader, err := imagegen.NewDownloader(cfg, logger)
	if err != nil {
		return nil, err
	}
	saver := imagegen.NewSaver(downloader, imagegen.SaverConfig{
		OutputDir:     cfg.OutputDir,
		ThumbnailSize: cfg.ThumbnailSize,
	}, logger)
	return saver.Save(ctx, img, opts.out)
}

func loadPresets(cfg *core.Config, opts *cliOptions) (core.Presets, error) {
	if opts.preset == "" || cfg.PresetsFile == "" {
		return nil, nil
	}
	return core.LoadPresets(cfg.PresetsFile)
}

// openHistory opens the job database when one is configured and registers
// it for cleanup.
func openHistory(ctx context.Context, cfg *core.Config, manager *shutdown.Manager, logger *logging.Logger) (*historyRecorder, error) {
	history := &historyRecorder{logger: logger}
	if !cfg.HistoryEnabled() {
		return history, nil
	}

	database, err := db.Open(ctx, cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	manager.Register("history", 30, func(context.Context) error {
		return database.Close()
	})

	history.repo = db.NewRepository(database)
	logger.Debug("job history enabled", zap.String("path", database.Path()))
	return history, nil
}

func checkConfig(ctx context.Context, cfg *core.Config, opts *cliOptions, stderr io.Writer) int {
	suite := validation.NewValidationSuite(cfg).
		WithOutput(stderr).
		WithEnvPath(opts.envFile).
		WithConnectivity(!opts.offline)

	if result := suite.Validate(ctx); !result.Success {
		return core.ExitCodeConfig
	}
	return core.ExitCodeSuccess
}

// fail prints err to stderr and returns its exit code.
func fail(stderr io.Writer, err error) int {
	code := core.ExitCodeFor(err)
	if errors.Is(err, errUsage) {
		code = core.ExitCodeUsage
	}

	red := color.New(color.FgRed, color.Bold)
	if configErr, ok := core.IsConfigError(err); ok {
		red.Fprintf(stderr, "error: %s\n", configErr.Message)
		if configErr.Action != "" {
			color.New(color.FgYellow).Fprintf(stderr, "  %s\n", configErr.Action)
		}
		return code
	}
	red.Fprintf(stderr, "error: %v\n", err)
	return code
}

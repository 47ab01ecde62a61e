package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"diffusionto/core"
	"diffusionto/db"
	"diffusionto/diffusion"
	"diffusionto/logging"

	"go.uber.org/zap"
)

// historyRecorder writes job progress to the optional history database.
// A nil recorder, or one without a repository, records nothing. History
// failures are logged and never fail the job.
type historyRecorder struct {
	repo   *db.Repository
	logger *logging.Logger
}

func (h *historyRecorder) enabled() bool {
	return h != nil && h.repo != nil
}

// submitted records a new job after RequestImage returned.
func (h *historyRecorder) submitted(ctx context.Context, correlationID string, token diffusion.Token, req diffusion.ImageRequest, submitErr error) {
	if !h.enabled() {
		return
	}
	negative, _ := req.NegativePrompt()
	rec := db.JobRecord{
		CorrelationID: correlationID,
		Token:         token.String(),
		Prompt:        req.Prompt(),
		Negative:      negative,
		Steps:         int(req.Steps()),
		Model:         req.Model().String(),
		Size:          req.Size().String(),
		Orientation:   req.Orientation().String(),
		Status:        db.JobStatusPending,
	}
	if submitErr != nil {
		rec.Status = statusFor(submitErr)
		rec.ErrorMessage = submitErr.Error()
	}
	if _, err := h.repo.InsertJob(context.WithoutCancel(ctx), rec); err != nil {
		h.logger.Warn("failed to record job in history", zap.Error(err))
	}
}

// resumed makes sure a job polled by token has a history row.
func (h *historyRecorder) resumed(ctx context.Context, correlationID string, token diffusion.Token) {
	if !h.enabled() {
		return
	}
	_, err := h.repo.GetJobByToken(ctx, token.String())
	if err == nil {
		return
	}
	if !errors.Is(err, db.ErrJobNotFound) {
		h.logger.Warn("failed to read job history", zap.Error(err))
		return
	}
	rec := db.JobRecord{
		CorrelationID: correlationID,
		Token:         token.String(),
		Status:        db.JobStatusPending,
	}
	if _, err := h.repo.InsertJob(ctx, rec); err != nil {
		h.logger.Warn("failed to record job in history", zap.Error(err))
	}
}

// finished records the outcome of waiting for token.
func (h *historyRecorder) finished(ctx context.Context, token diffusion.Token, img *diffusion.Image, outputPath string, elapsed time.Duration, jobErr error) {
	if !h.enabled() || token.IsZero() {
		return
	}
	update := db.JobUpdate{
		Status:     db.JobStatusReady,
		OutputPath: outputPath,
		Duration:   elapsed,
	}
	if img != nil {
		update.ImageRef = imageRef(img)
		update.CreditsUsed = img.CreditsUsed
	}
	if jobErr != nil {
		update.Status = statusFor(jobErr)
		update.ErrorMessage = jobErr.Error()
	}
	// The job context may already be cancelled by an interrupt.
	if err := h.repo.UpdateJobStatus(context.WithoutCancel(ctx), token.String(), update); err != nil {
		h.logger.Warn("failed to update job history", zap.Error(err))
	}
}

// statusFor maps a job error to its history status.
func statusFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return db.JobStatusAbandoned
	case errors.Is(err, diffusion.ErrTimeout):
		return db.JobStatusTimeout
	case errors.Is(err, diffusion.ErrJobFailed):
		return db.JobStatusFailed
	default:
		return db.JobStatusError
	}
}

// imageRef keeps URLs as they are and summarizes inline payloads, which
// can be megabytes of base64.
func imageRef(img *diffusion.Image) string {
	if img.IsURL() {
		return img.Raw
	}
	mediaType := img.MediaType()
	if mediaType == "" {
		mediaType = "base64"
	}
	return fmt.Sprintf("inline %s (%s)", mediaType, core.FormatBytes(int64(len(img.Raw))))
}

// printHistory writes jobs as an aligned table.
func printHistory(w io.Writer, jobs []db.JobRecord) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "no jobs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tSTATUS\tTOKEN\tMODEL\tPROMPT\tOUTPUT")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			job.Status,
			orDash(job.Token),
			orDash(job.Model),
			orDash(truncate(job.Prompt, 40)),
			orDash(job.OutputPath),
		)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

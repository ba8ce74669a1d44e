package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"biomtype/internal/artifact"
	"biomtype/internal/config"
	"biomtype/internal/jobs"
	"biomtype/internal/logging"
	"biomtype/internal/metrics"
	"biomtype/internal/services"
	"biomtype/internal/validation"
)

// buildValidator wires a Validator with the configured archive and a fresh
// metrics recorder.
func buildValidator(ctx context.Context, cfg *config.Config, source validation.MetadataSource, steps validation.StepReporter, logger *slog.Logger) (*validation.Validator, *metrics.Recorder, error) {
	store, err := artifact.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	recorder := metrics.New()
	opts := []validation.Option{
		validation.WithStepReporter(steps),
		validation.WithMetrics(recorder),
		validation.WithLogger(logger),
		validation.WithGeneratedBy(cfg.Validation.GeneratedBy),
		validation.WithLockTimeout(cfg.LockTimeout()),
	}
	if store != nil {
		opts = append(opts, validation.WithArchive(store))
	}
	return validation.New(source, opts...), recorder, nil
}

func flushMetrics(cfg *config.Config, recorder *metrics.Recorder, logger *slog.Logger) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
			logging.String("path", cfg.Metrics.Textfile),
			logging.Error(err),
		)
	}
}

// ledgerResult converts a validation run into the row recorded by the ledger.
func ledgerResult(outcome validation.Outcome, runErr error) jobs.Result {
	result := jobs.Result{
		Verdict:    outcome.VerdictLabel(),
		TablePath:  outcome.TablePath,
		ArchiveKey: outcome.ArchiveKey,
	}
	switch {
	case runErr != nil:
		result.ErrorKind = services.Classify(runErr)
		result.ErrorMessage = runErr.Error()
	case outcome.Success:
		result.Success = true
	default:
		result.ErrorKind = rejectionKind(outcome)
		result.ErrorMessage = outcome.ErrorMessage
	}
	return result
}

func rejectionKind(outcome validation.Outcome) string {
	if outcome.Problem != "" {
		return string(outcome.Problem)
	}
	return "rejected"
}

func finishLedger(ctx context.Context, ledger *jobs.Store, jobID string, outcome validation.Outcome, runErr error, logger *slog.Logger) {
	if err := ledger.Finish(ctx, jobID, ledgerResult(outcome, runErr)); err != nil {
		logging.WarnWithContext(logger, "job ledger not updated", "ledger_finish_failed",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "`biomtype jobs` shows the run as still running"),
		)
	}
}

// printOutcome writes a short human readable summary of a run.
func printOutcome(out io.Writer, jobID string, outcome validation.Outcome, runErr error) {
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Job "+jobID, colorize) {
		fmt.Fprintln(out, line)
	}
	switch {
	case runErr != nil:
		fmt.Fprintln(out, renderStatusLine("Result", statusError, "Error ("+services.Classify(runErr)+")", colorize))
	case outcome.Success:
		fmt.Fprintln(out, renderStatusLine("Result", statusOK, "Succeeded", colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Result", statusWarn, "Rejected", colorize))
	}
	if label := outcome.VerdictLabel(); label != "" {
		fmt.Fprintln(out, renderStatusLine("Verdict", statusInfo, label, colorize))
	}
	if outcome.TablePath != "" {
		fmt.Fprintln(out, renderStatusLine("Table", statusInfo, outcome.TablePath, colorize))
	}
	if outcome.ArchiveKey != "" {
		fmt.Fprintln(out, renderStatusLine("Archive", statusInfo, outcome.ArchiveKey, colorize))
	}
	if runErr == nil && !outcome.Success && outcome.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Reason", statusWarn, outcome.ErrorMessage, colorize))
	}
}

var errRejected = errors.New("table rejected")

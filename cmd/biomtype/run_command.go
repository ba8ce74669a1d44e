package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"biomtype/internal/jobs"
	"biomtype/internal/logging"
	"biomtype/internal/qiita"
	"biomtype/internal/services"
	"biomtype/internal/validation"
)

// validateCommand is the only Qiita command this plugin serves.
const validateCommand = "Validate"

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <qiita-url> <job-id> <output-dir>",
		Short: "Execute a Qiita processing job",
		Long: `Execute one Qiita processing job and report its completion.

Qiita invokes this command for every job of the plugin. A non-empty URL
argument overrides [qiita].url from the configuration.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), ctx, cmd.OutOrStdout(), args[0], args[1], args[2])
		},
	}
}

func runJob(ctx context.Context, cmdCtx *commandContext, out io.Writer, qiitaURL, jobID, outDir string) error {
	base, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	cfg := *base
	if u := strings.TrimSpace(qiitaURL); u != "" {
		cfg.Qiita.URL = strings.TrimRight(u, "/")
	}
	logger, err := cmdCtx.baseLogger()
	if err != nil {
		return err
	}
	ctx = services.WithStage(services.WithJobID(ctx, jobID), "run")
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "run"))

	client, err := qiita.NewFromConfig(&cfg, logger)
	if err != nil {
		return err
	}
	info, err := client.JobInfo(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job %s: %w", jobID, err)
	}

	fail := func(cause error) error {
		if err := client.CompleteJob(ctx, jobID, false, nil, cause.Error()); err != nil {
			return errors.Join(cause, fmt.Errorf("report job failure: %w", err))
		}
		return cause
	}

	if info.Command != validateCommand {
		return fail(services.Wrap(services.ErrValidation, "run", "dispatch",
			fmt.Sprintf("unknown command %q, supported commands: %s", info.Command, validateCommand), nil))
	}
	params, err := info.ValidateParameters()
	if err != nil {
		return fail(err)
	}

	ledger, err := cmdCtx.openLedger(ctx)
	if err != nil {
		return fail(err)
	}
	defer ledger.Close()

	requestID := uuid.NewString()
	if _, err := ledger.Start(ctx, jobs.StartParams{
		RequestID:    requestID,
		QiitaJobID:   jobID,
		PrepID:       params.PrepID,
		ArtifactType: params.ArtifactType,
	}); err != nil {
		return fail(fmt.Errorf("record job start: %w", err))
	}

	validator, recorder, err := buildValidator(ctx, &cfg, client, validation.Reporters{client, ledger}, logger)
	if err != nil {
		finishLedger(ctx, ledger, jobID, validation.Outcome{}, err, logger)
		return fail(err)
	}

	outcome, runErr := validator.Validate(ctx, validation.Request{
		RequestID:    requestID,
		JobID:        jobID,
		PrepID:       params.PrepID,
		ArtifactType: params.ArtifactType,
		Files:        params.Files,
		OutDir:       outDir,
	})
	flushMetrics(&cfg, recorder, logger)
	finishLedger(ctx, ledger, jobID, outcome, runErr, logger)
	printOutcome(out, jobID, outcome, runErr)

	if runErr != nil {
		return fail(runErr)
	}
	if err := client.CompleteJob(ctx, jobID, outcome.Success, outcome.Artifacts, outcome.ErrorMessage); err != nil {
		return fmt.Errorf("report job completion: %w", err)
	}
	return nil
}

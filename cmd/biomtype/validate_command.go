package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"biomtype/internal/jobs"
	"biomtype/internal/logging"
	"biomtype/internal/services"
	"biomtype/internal/validation"
)

type validateOptions struct {
	prepPath     string
	biomPath     string
	fastaPath    string
	outDir       string
	artifactType string
	jsonOutput   bool
}

// outcomeView is the JSON shape of a local validation run.
type outcomeView struct {
	RequestID  string   `json:"request_id"`
	Success    bool     `json:"success"`
	Verdict    string   `json:"verdict,omitempty"`
	Problem    string   `json:"problem,omitempty"`
	Message    string   `json:"message,omitempty"`
	TablePath  string   `json:"table_path,omitempty"`
	ArchiveKey string   `json:"archive_key,omitempty"`
	Files      []string `json:"files,omitempty"`
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	opts := validateOptions{artifactType: validation.ArtifactType}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate local files as a BIOM artifact",
		Long: `Run the validate workflow against a local table and prep information file.

The prep file uses the layout of the Qiita prep template data endpoint:
{"data": {"<sample id>": {"<column>": "<value>", ...}, ...}}. Corrected tables
are written to --out-dir, or to a per-run directory under [paths].work_dir.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.prepPath) == "" || strings.TrimSpace(opts.biomPath) == "" {
				return errors.New("--prep and --biom are required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.baseLogger()
			if err != nil {
				return err
			}
			logger = logging.NewComponentLogger(logger, "validate")

			ledger, err := ctx.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer ledger.Close()

			requestID := uuid.NewString()
			outDir := strings.TrimSpace(opts.outDir)
			if outDir == "" {
				outDir = filepath.Join(cfg.Paths.WorkDir, requestID)
			}
			files := map[string][]string{validation.FileTypeBIOM: {opts.biomPath}}
			if strings.TrimSpace(opts.fastaPath) != "" {
				files[validation.FileTypePreprocessedFASTA] = []string{opts.fastaPath}
			}

			// Local runs are keyed by their request id.
			if _, err := ledger.Start(cmd.Context(), jobs.StartParams{
				RequestID:    requestID,
				ArtifactType: opts.artifactType,
			}); err != nil {
				return err
			}
			validator, recorder, err := buildValidator(cmd.Context(), cfg, validation.PrepFile{Path: opts.prepPath}, ledger, logger)
			if err != nil {
				finishLedger(cmd.Context(), ledger, requestID, validation.Outcome{}, err, logger)
				return err
			}
			outcome, runErr := validator.Validate(cmd.Context(), validation.Request{
				RequestID:    requestID,
				JobID:        requestID,
				ArtifactType: opts.artifactType,
				Files:        files,
				OutDir:       outDir,
			})
			flushMetrics(cfg, recorder, logger)
			finishLedger(cmd.Context(), ledger, requestID, outcome, runErr, logger)

			if opts.jsonOutput {
				if err := writeJSON(cmd, newOutcomeView(outcome, runErr)); err != nil {
					return err
				}
			} else {
				printOutcome(cmd.OutOrStdout(), requestID, outcome, runErr)
			}
			if runErr != nil {
				return runErr
			}
			if !outcome.Success {
				return errRejected
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.prepPath, "prep", "", "Prep information JSON file")
	cmd.Flags().StringVar(&opts.biomPath, "biom", "", "BIOM table to validate")
	cmd.Flags().StringVar(&opts.fastaPath, "fasta", "", "Representative set FASTA to cross-check (optional)")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "", "Directory for the corrected table")
	cmd.Flags().StringVar(&opts.artifactType, "type", opts.artifactType, "Artifact type")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the outcome as JSON")
	return cmd
}

func newOutcomeView(outcome validation.Outcome, runErr error) outcomeView {
	view := outcomeView{
		RequestID:  outcome.RequestID,
		Success:    runErr == nil && outcome.Success,
		Verdict:    outcome.VerdictLabel(),
		Problem:    string(outcome.Problem),
		Message:    outcome.ErrorMessage,
		TablePath:  outcome.TablePath,
		ArchiveKey: outcome.ArchiveKey,
	}
	if runErr != nil {
		view.Problem = services.Classify(runErr)
		view.Message = runErr.Error()
	}
	for _, artifact := range outcome.Artifacts {
		for _, file := range artifact.Files {
			view.Files = append(view.Files, file.Type+":"+file.Path)
		}
	}
	return view
}

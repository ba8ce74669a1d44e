package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"biomtype/internal/artifact"
	"biomtype/internal/biom"
	"biomtype/internal/crossval"
	"biomtype/internal/fasta"
	"biomtype/internal/logging"
	"biomtype/internal/metrics"
	"biomtype/internal/qiita"
	"biomtype/internal/reconcile"
	"biomtype/internal/services"
)

// ArtifactType is the only artifact type this plugin validates.
const ArtifactType = "BIOM"

// Filepath types understood by the workflow.
const (
	FileTypeBIOM              = "biom"
	FileTypePreprocessedFASTA = "preprocessed_fasta"
)

// Step names as shown in Qiita.
const (
	StepCollectPrep   = "Step 1: Collecting prep information"
	StepValidateTable = "Step 2: Validating BIOM file"
	StepFixSampleIDs  = "Step 3: Fixing BIOM sample ids"
)

const (
	stepCollectPrep = "collect_prep"
	stepValidate    = "validate_table"
	stepFix         = "fix_sample_ids"
	stepRepSet      = "representative_set"

	lockFileName     = ".biomtype.lock"
	lockRetryDelay   = 100 * time.Millisecond
	defaultGenerated = "biomtype"
)

// Request describes one validate job.
type Request struct {
	// RequestID correlates logs and the archive key; generated when empty.
	RequestID    string
	JobID        string
	PrepID       string
	ArtifactType string
	Files        map[string][]string
	OutDir       string
}

// Outcome is the result reported back to Qiita.
type Outcome struct {
	RequestID    string
	Success      bool
	ErrorMessage string
	Artifacts    []qiita.ArtifactInfo
	Reconciled   bool
	Verdict      reconcile.Kind
	Problem      reconcile.Problem
	TablePath    string
	ArchiveKey   string
}

// VerdictLabel returns the verdict name, or "" when reconciliation never ran.
func (o Outcome) VerdictLabel() string {
	if !o.Reconciled {
		return ""
	}
	return o.Verdict.String()
}

// Option customizes a Validator.
type Option func(*Validator)

// WithStepReporter sets where step updates go.
func WithStepReporter(r StepReporter) Option {
	return func(v *Validator) { v.steps = r }
}

// WithArchive archives corrected tables in store.
func WithArchive(store artifact.Store) Option {
	return func(v *Validator) { v.archive = store }
}

// WithMetrics records outcomes in rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(v *Validator) { v.metrics = rec }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithGeneratedBy sets the generated_by stamp of rewritten tables.
func WithGeneratedBy(name string) Option {
	return func(v *Validator) {
		if strings.TrimSpace(name) != "" {
			v.generatedBy = strings.TrimSpace(name)
		}
	}
}

// WithLockTimeout bounds the wait for the output directory lock.
func WithLockTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.lockTimeout = d
		}
	}
}

// Validator runs validate jobs.
type Validator struct {
	metadata    MetadataSource
	steps       StepReporter
	archive     artifact.Store
	metrics     *metrics.Recorder
	logger      *slog.Logger
	generatedBy string
	lockTimeout time.Duration
}

// New builds a Validator reading prep information from source.
func New(source MetadataSource, opts ...Option) *Validator {
	v := &Validator{
		metadata:    source,
		logger:      logging.NewNop(),
		generatedBy: defaultGenerated,
		lockTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = logging.NewComponentLogger(v.logger, "validation")
	return v
}

// Validate runs the validate job described by req.
func (v *Validator) Validate(ctx context.Context, req Request) (outcome Outcome, err error) {
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = services.WithRequestID(services.WithJobID(ctx, req.JobID), requestID)
	if _, ok := services.StageFromContext(ctx); !ok {
		ctx = services.WithStage(ctx, "validate")
	}
	logger := logging.WithContext(ctx, v.logger)
	started := time.Now()

	defer func() {
		outcome.RequestID = requestID
		v.observe(logger, outcome, err, time.Since(started))
	}()

	logger.Info("validation started",
		logging.String(logging.FieldEventType, "validation_start"),
		logging.String("prep_id", req.PrepID),
		logging.String("artifact_type", req.ArtifactType),
	)

	if req.ArtifactType != ArtifactType {
		return failed(fmt.Sprintf("Unknown artifact type %s. Supported types: %s", req.ArtifactType, ArtifactType)), nil
	}
	biomPaths := req.Files[FileTypeBIOM]
	if len(biomPaths) == 0 || strings.TrimSpace(biomPaths[0]) == "" {
		return failed("No BIOM table was provided: the files parameter has no \"biom\" entry"), nil
	}
	if v.metadata == nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, stepCollectPrep, "validate", "no prep information source configured", nil)
	}

	if req.OutDir != "" {
		unlock, lockErr := v.lockOutDir(ctx, req.OutDir)
		if lockErr != nil {
			return Outcome{}, lockErr
		}
		defer unlock()
	}

	v.reportStep(ctx, logger, req.JobID, StepCollectPrep)
	metadata, err := v.metadata.PrepInformation(ctx, req.PrepID)
	if err != nil {
		return Outcome{}, fmt.Errorf("collect prep information: %w", err)
	}

	v.reportStep(ctx, logger, req.JobID, StepValidateTable)
	tablePath := biomPaths[0]
	table, err := biom.Load(tablePath)
	if err != nil {
		if errors.Is(err, biom.ErrInvalidTable) {
			return failed(fmt.Sprintf("The BIOM table %s could not be read: %v", filepath.Base(tablePath), err)), nil
		}
		return Outcome{}, services.Wrap(services.ErrTransient, stepValidate, "load table", tablePath, err)
	}

	verdict, err := reconcile.Reconcile(metadata, table.IDs(biom.AxisSample))
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, stepValidate, "reconcile sample ids", "prep "+req.PrepID, err)
	}
	v.metrics.ObserveVerdict(verdict.Kind.String())
	logger.Info("sample ids reconciled",
		logging.String(logging.FieldEventType, "reconcile_verdict"),
		logging.String("verdict", verdict.Kind.String()),
		logging.String("problem", string(verdict.Problem)),
		logging.Strings("missing", verdict.Missing),
		logging.Int("table_samples", len(table.Samples)),
		logging.Int("prep_samples", len(metadata)),
	)

	outcome = Outcome{Reconciled: true, Verdict: verdict.Kind, Problem: verdict.Problem, TablePath: tablePath}
	if !verdict.Unchanged() {
		v.reportStep(ctx, logger, req.JobID, StepFixSampleIDs)
	}
	switch verdict.Kind {
	case reconcile.KindRejected:
		return outcome.fail(verdict.Reason), nil
	case reconcile.KindRemapped:
		fixed, fixErr := v.fixSampleIDs(ctx, logger, req, requestID, table, verdict.Mapping, &outcome)
		if fixErr != nil {
			return Outcome{}, fixErr
		}
		if !fixed {
			return outcome, nil
		}
	}

	files := []qiita.FilePath{{Path: outcome.TablePath, Type: FileTypeBIOM}}

	if repset := req.Files[FileTypePreprocessedFASTA]; len(repset) > 0 {
		ids, readErr := fasta.ReadIDs(repset[0])
		if readErr != nil {
			if errors.Is(readErr, fasta.ErrMalformed) {
				return outcome.fail(fmt.Sprintf("The representative set %s could not be read: %v", filepath.Base(repset[0]), readErr)), nil
			}
			return Outcome{}, services.Wrap(services.ErrTransient, stepRepSet, "read representative set", repset[0], readErr)
		}
		result := crossval.CrossValidate(table.IDs(biom.AxisObservation), ids)
		v.metrics.ObserveCrossValidation(result.OK())
		if !result.OK() {
			logger.Info("representative set mismatch",
				logging.String(logging.FieldEventType, "cross_validation_mismatch"),
				logging.Int("extra_ids", len(result.ExtraIDs)),
				logging.Int("missing_ids", len(result.MissingIDs)),
			)
			return outcome.fail(result.Message()), nil
		}
		files = append(files, qiita.FilePath{Path: repset[0], Type: FileTypePreprocessedFASTA})
	}

	files = append(files, passthroughFiles(req.Files)...)
	outcome.Success = true
	outcome.Artifacts = []qiita.ArtifactInfo{{ArtifactType: ArtifactType, Files: files}}
	return outcome, nil
}

// fixSampleIDs rewrites the table's sample ids and saves it in the output
// directory. It reports false when the mapping could not be applied, with
// outcome already marked as failed.
func (v *Validator) fixSampleIDs(ctx context.Context, logger *slog.Logger, req Request, requestID string, table *biom.Table, mapping map[string]string, outcome *Outcome) (bool, error) {
	if err := table.UpdateIDs(mapping, biom.AxisSample); err != nil {
		var updateErr *biom.UpdateError
		if !errors.As(err, &updateErr) {
			return false, services.Wrap(services.ErrTransient, stepFix, "update sample ids", "", err)
		}
		outcome.Verdict = reconcile.KindRejected
		outcome.Problem = reconcile.ProblemMetadataIncomplete
		*outcome = outcome.fail(reconcile.IncompleteMessage(unmapped(table.IDs(biom.AxisSample), mapping)))
		return false, nil
	}
	if strings.TrimSpace(req.OutDir) == "" {
		return false, services.Wrap(services.ErrConfiguration, stepFix, "write table", "an output directory is required to rewrite sample ids", nil)
	}

	target := filepath.Join(req.OutDir, filepath.Base(outcome.TablePath))
	if err := table.Save(target, v.generatedBy); err != nil {
		return false, services.Wrap(services.ErrTransient, stepFix, "write table", target, err)
	}
	outcome.TablePath = target
	logger.Info("corrected table written",
		logging.String(logging.FieldEventType, "table_written"),
		logging.String("table_path", target),
		logging.Int("remapped_samples", len(mapping)),
	)

	if v.archive != nil {
		key := artifact.TableKey(req.JobID, requestID, target)
		info, err := artifact.PutFile(ctx, v.archive, key, target, artifact.PutOptions{
			ContentType: "application/json",
			Metadata: map[string]string{
				"job_id":     req.JobID,
				"prep_id":    req.PrepID,
				"request_id": requestID,
			},
		})
		if err != nil {
			logging.WarnWithContext(logger, "corrected table not archived", "archive_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "table is still returned to Qiita but has no archive copy"),
				logging.String(logging.FieldErrorHint, "check the [storage] settings"),
			)
		} else {
			outcome.ArchiveKey = info.Key
		}
	}
	return true, nil
}

func (v *Validator) lockOutDir(ctx context.Context, outDir string) (func(), error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "create output directory", outDir, err)
	}
	lock := flock.New(filepath.Join(outDir, lockFileName))
	lockCtx, cancel := context.WithTimeout(ctx, v.lockTimeout)
	defer cancel()
	ok, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, services.Wrap(services.ErrTimeout, "", "lock output directory", outDir, err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			v.logger.Warn("failed to release output directory lock", logging.Error(err))
		}
	}, nil
}

func (v *Validator) reportStep(ctx context.Context, logger *slog.Logger, jobID, step string) {
	logger.Info(step, logging.String(logging.FieldEventType, "job_step"))
	if v.steps == nil || jobID == "" {
		return
	}
	if err := v.steps.UpdateStep(ctx, jobID, step); err != nil {
		logging.WarnWithContext(logger, "job step not reported", "job_step_failed",
			logging.String("step", step),
			logging.Error(err),
			logging.String(logging.FieldImpact, "step shown in Qiita may be stale"),
		)
	}
}

func (v *Validator) observe(logger *slog.Logger, outcome Outcome, err error, elapsed time.Duration) {
	switch {
	case err != nil:
		v.metrics.ObserveValidation("error", elapsed)
		logging.ErrorWithContext(logger, "validation error", "validation_error",
			logging.Error(err),
			logging.String("error_kind", services.Classify(err)),
			logging.Bool("retryable", services.Retryable(err)),
			logging.Duration("elapsed", elapsed),
		)
	case outcome.Success:
		v.metrics.ObserveValidation("success", elapsed)
		logger.Info("validation succeeded",
			logging.String(logging.FieldEventType, "validation_complete"),
			logging.String("table_path", outcome.TablePath),
			logging.Duration("elapsed", elapsed),
		)
	default:
		v.metrics.ObserveValidation("failure", elapsed)
		logging.WarnWithContext(logger, "validation rejected the table", "validation_rejected",
			logging.String("reason", outcome.ErrorMessage),
			logging.Duration("elapsed", elapsed),
		)
	}
}

func (o Outcome) fail(message string) Outcome {
	o.Success = false
	o.ErrorMessage = message
	o.Artifacts = nil
	return o
}

func failed(message string) Outcome {
	return Outcome{ErrorMessage: message}
}

// unmapped returns the ids absent from mapping, sorted.
func unmapped(ids []string, mapping map[string]string) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := mapping[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// passthroughFiles returns every file that is neither the table nor the
// representative set, ordered by filepath type.
func passthroughFiles(files map[string][]string) []qiita.FilePath {
	types := make([]string, 0, len(files))
	for fpType := range files {
		if fpType == FileTypeBIOM || fpType == FileTypePreprocessedFASTA {
			continue
		}
		types = append(types, fpType)
	}
	sort.Strings(types)
	var out []qiita.FilePath
	for _, fpType := range types {
		for _, path := range files[fpType] {
			out = append(out, qiita.FilePath{Path: path, Type: fpType})
		}
	}
	return out
}

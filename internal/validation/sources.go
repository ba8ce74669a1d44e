package validation

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"biomtype/internal/qiita"
	"biomtype/internal/reconcile"
	"biomtype/internal/services"
)

// MetadataSource returns the prep information of a prep template.
type MetadataSource interface {
	PrepInformation(ctx context.Context, prepID string) (reconcile.Metadata, error)
}

// StepReporter records the current step of a job.
type StepReporter interface {
	UpdateStep(ctx context.Context, jobID, step string) error
}

// Reporters fans a step update out to several reporters, in order.
type Reporters []StepReporter

// UpdateStep calls every reporter and joins their errors.
func (r Reporters) UpdateStep(ctx context.Context, jobID, step string) error {
	var errs []error
	for _, reporter := range r {
		if reporter == nil {
			continue
		}
		if err := reporter.UpdateStep(ctx, jobID, step); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PrepFile reads prep information from a local JSON file in the layout of
// the Qiita prep template data endpoint. The prep id is ignored.
type PrepFile struct {
	Path string
}

// PrepInformation implements MetadataSource.
func (p PrepFile) PrepInformation(_ context.Context, _ string) (reconcile.Metadata, error) {
	path := strings.TrimSpace(p.Path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, stepCollectPrep, "read prep file", "path is empty", nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, fs.ErrNotExist) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, stepCollectPrep, "read prep file", path, err)
	}
	metadata, err := qiita.DecodePrepData(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, stepCollectPrep, "decode prep file", path, err)
	}
	return metadata, nil
}

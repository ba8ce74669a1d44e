package qiita

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"biomtype/internal/logging"
	"biomtype/internal/reconcile"
	"biomtype/internal/services"
)

// FilePath is one file of an artifact together with its Qiita filepath type.
type FilePath struct {
	Path string
	Type string
}

// MarshalJSON encodes the pair as a two element array.
func (f FilePath) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.Path, f.Type})
}

// ArtifactInfo describes an artifact produced by a job.
type ArtifactInfo struct {
	OutputName   string
	ArtifactType string
	Files        []FilePath
}

// JobInfo is the processing job record returned by Qiita.
type JobInfo struct {
	Command    string         `json:"command"`
	Status     string         `json:"status"`
	Parameters map[string]any `json:"parameters"`
}

// ValidateParameters are the inputs of a type plugin's validate command.
type ValidateParameters struct {
	PrepID       string
	ArtifactType string
	Files        map[string][]string
}

// ValidateParameters extracts the template, artifact_type and files
// parameters. Qiita sends files as a JSON encoded string.
func (j JobInfo) ValidateParameters() (ValidateParameters, error) {
	var params ValidateParameters
	template, ok := j.Parameters["template"]
	if !ok || template == nil {
		return params, services.Wrap(services.ErrValidation, stageName, "job parameters", "missing template", nil)
	}
	params.PrepID = stringify(template)
	params.ArtifactType = stringify(j.Parameters["artifact_type"])

	switch files := j.Parameters["files"].(type) {
	case string:
		if err := json.Unmarshal([]byte(files), &params.Files); err != nil {
			return params, services.Wrap(services.ErrValidation, stageName, "job parameters", "decode files", err)
		}
	case map[string]any:
		params.Files = make(map[string][]string, len(files))
		for fpType, value := range files {
			list, ok := value.([]any)
			if !ok {
				return params, services.Wrap(services.ErrValidation, stageName, "job parameters",
					fmt.Sprintf("files[%s] is not a list", fpType), nil)
			}
			for _, item := range list {
				params.Files[fpType] = append(params.Files[fpType], stringify(item))
			}
		}
	default:
		return params, services.Wrap(services.ErrValidation, stageName, "job parameters", "missing files", nil)
	}
	return params, nil
}

// PrepInformation fetches the prep information of a prep template keyed by
// sample id. Non-string column values are converted to their text form.
func (c *Client) PrepInformation(ctx context.Context, prepID string) (reconcile.Metadata, error) {
	prepID = strings.TrimSpace(prepID)
	if prepID == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "prep information", "prep id is required", nil)
	}
	var raw json.RawMessage
	if err := c.get(ctx, "/qiita_db/prep_template/"+url.PathEscape(prepID)+"/data/", &raw); err != nil {
		return nil, err
	}
	metadata, err := decodePrepData(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "prep information", "decode prep "+prepID, err)
	}
	c.logger.Debug("prep information fetched",
		logging.String(logging.FieldEventType, "qiita_prep_fetched"),
		logging.String("prep_id", prepID),
		logging.Int("samples", len(metadata)),
	)
	return metadata, nil
}

// DecodePrepData parses a {"data": {sample: {column: value}}} document.
func DecodePrepData(raw []byte) (reconcile.Metadata, error) {
	return decodePrepData(raw)
}

func decodePrepData(raw []byte) (reconcile.Metadata, error) {
	var payload struct {
		Data map[string]map[string]any `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("document has no data object")
	}
	metadata := make(reconcile.Metadata, len(payload.Data))
	for sample, columns := range payload.Data {
		fields := make(map[string]string, len(columns))
		for column, value := range columns {
			fields[column] = stringify(value)
		}
		metadata[sample] = fields
	}
	return metadata, nil
}

// JobInfo fetches a processing job.
func (c *Client) JobInfo(ctx context.Context, jobID string) (JobInfo, error) {
	var info JobInfo
	if strings.TrimSpace(jobID) == "" {
		return info, services.Wrap(services.ErrValidation, stageName, "job info", "job id is required", nil)
	}
	if err := c.get(ctx, "/qiita_db/jobs/"+url.PathEscape(jobID)+"/", &info); err != nil {
		return info, err
	}
	return info, nil
}

// UpdateStep records the current step of a running job.
func (c *Client) UpdateStep(ctx context.Context, jobID, step string) error {
	return c.post(ctx, "/qiita_db/jobs/"+url.PathEscape(jobID)+"/step/", map[string]string{"step": step}, nil)
}

// CompleteJob reports the final state of a job. message is sent as the error
// text and is ignored by Qiita when success is true.
func (c *Client) CompleteJob(ctx context.Context, jobID string, success bool, artifacts []ArtifactInfo, message string) error {
	payload := map[string]any{
		"success":   success,
		"error":     message,
		"artifacts": encodeArtifacts(artifacts),
	}
	if err := c.post(ctx, "/qiita_db/jobs/"+url.PathEscape(jobID)+"/complete/", payload, nil); err != nil {
		return err
	}
	c.logger.Info("qiita job completed",
		logging.String(logging.FieldEventType, "qiita_job_completed"),
		logging.String(logging.FieldJobID, jobID),
		logging.Bool("success", success),
	)
	return nil
}

// encodeArtifacts keys artifacts by output name. Unnamed outputs use "null",
// which is how Qiita receives the validate artifact.
func encodeArtifacts(artifacts []ArtifactInfo) map[string]any {
	if len(artifacts) == 0 {
		return nil
	}
	out := make(map[string]any, len(artifacts))
	for _, artifact := range artifacts {
		name := artifact.OutputName
		if name == "" {
			name = "null"
		}
		files := artifact.Files
		if files == nil {
			files = []FilePath{}
		}
		out[name] = map[string]any{
			"artifact_type": artifact.ArtifactType,
			"filepaths":     files,
		}
	}
	return out
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, key := range keys {
			parts[i] = key + "=" + stringify(v[key])
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

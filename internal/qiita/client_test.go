package qiita_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"biomtype/internal/qiita"
	"biomtype/internal/services"
)

type fakeQiita struct {
	mu        sync.Mutex
	token     string
	authCalls int
	steps     []string
	completed map[string]any
}

func newFakeQiita(t *testing.T) (*fakeQiita, *httptest.Server) {
	t.Helper()
	fake := &fakeQiita{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /qiita_db/authenticate/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("client_id") != "id" || r.PostForm.Get("client_secret") != "secret" || r.PostForm.Get("grant_type") != "client" {
			http.Error(w, "bad credentials", http.StatusBadRequest)
			return
		}
		fake.mu.Lock()
		fake.authCalls++
		fake.token = "token-" + string(rune('0'+fake.authCalls))
		token := fake.token
		fake.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": token, "token_type": "Bearer"})
	})
	mux.HandleFunc("GET /qiita_db/prep_template/{id}/data/{$}", func(w http.ResponseWriter, r *http.Request) {
		if !fake.authorized(r) {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		if r.PathValue("id") != "1" {
			http.Error(w, "no such prep", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"data": {"1.S1": {"run_prefix": "S1", "depth": 12}, "1.S2": {"run_prefix": "S2", "depth": null}}}`)
	})
	mux.HandleFunc("GET /qiita_db/jobs/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		if !fake.authorized(r) {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"command": "Validate", "status": "running",
			"parameters": {"template": 1, "artifact_type": "BIOM", "files": "{\"biom\": [\"/tmp/t.biom\"]}"}}`)
	})
	mux.HandleFunc("POST /qiita_db/jobs/{id}/step/", func(w http.ResponseWriter, r *http.Request) {
		if !fake.authorized(r) {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fake.mu.Lock()
		fake.steps = append(fake.steps, body["step"])
		fake.mu.Unlock()
	})
	mux.HandleFunc("POST /qiita_db/jobs/{id}/complete/", func(w http.ResponseWriter, r *http.Request) {
		if !fake.authorized(r) {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fake.mu.Lock()
		fake.completed = body
		fake.mu.Unlock()
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeQiita) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token != "" && r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *fakeQiita) expireToken() {
	f.mu.Lock()
	f.token = "rotated"
	f.mu.Unlock()
}

func newClient(t *testing.T, server *httptest.Server) *qiita.Client {
	t.Helper()
	client, err := qiita.NewClient(server.URL+"/", "id", "secret", qiita.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestPrepInformationStringifiesValues(t *testing.T) {
	_, server := newFakeQiita(t)
	client := newClient(t, server)

	metadata, err := client.PrepInformation(context.Background(), "1")
	if err != nil {
		t.Fatalf("PrepInformation: %v", err)
	}
	want := map[string]string{"run_prefix": "S1", "depth": "12"}
	if !reflect.DeepEqual(metadata["1.S1"], want) {
		t.Fatalf("1.S1 = %v, want %v", metadata["1.S1"], want)
	}
	if got, ok := metadata["1.S2"]["depth"]; !ok || got != "" {
		t.Fatalf("null value should become empty string, got %q (present=%v)", got, ok)
	}
}

func TestPrepInformationNotFound(t *testing.T) {
	_, server := newFakeQiita(t)
	client := newClient(t, server)

	_, err := client.PrepInformation(context.Background(), "99")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var statusErr *qiita.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
}

func TestExpiredTokenIsRefreshedOnce(t *testing.T) {
	fake, server := newFakeQiita(t)
	client := newClient(t, server)
	ctx := context.Background()

	if err := client.UpdateStep(ctx, "job-1", "Step 1: Collecting prep information"); err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}
	fake.expireToken()
	if err := client.UpdateStep(ctx, "job-1", "Step 2: Validating BIOM file"); err != nil {
		t.Fatalf("UpdateStep after expiry: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.authCalls != 2 {
		t.Fatalf("auth calls = %d, want 2", fake.authCalls)
	}
	want := []string{"Step 1: Collecting prep information", "Step 2: Validating BIOM file"}
	if !reflect.DeepEqual(fake.steps, want) {
		t.Fatalf("steps = %v, want %v", fake.steps, want)
	}
}

func TestBadCredentialsFail(t *testing.T) {
	_, server := newFakeQiita(t)
	client, err := qiita.NewClient(server.URL, "id", "wrong", qiita.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = client.UpdateStep(context.Background(), "job-1", "step")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("err = %v, want ErrExternalTool", err)
	}
}

func TestJobInfoValidateParameters(t *testing.T) {
	_, server := newFakeQiita(t)
	client := newClient(t, server)

	info, err := client.JobInfo(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("JobInfo: %v", err)
	}
	if info.Command != "Validate" || info.Status != "running" {
		t.Fatalf("unexpected job info %+v", info)
	}
	params, err := info.ValidateParameters()
	if err != nil {
		t.Fatalf("ValidateParameters: %v", err)
	}
	if params.PrepID != "1" || params.ArtifactType != "BIOM" {
		t.Fatalf("unexpected params %+v", params)
	}
	if !reflect.DeepEqual(params.Files, map[string][]string{"biom": {"/tmp/t.biom"}}) {
		t.Fatalf("files = %v", params.Files)
	}
}

func TestValidateParametersRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"no template", map[string]any{"files": "{}"}},
		{"no files", map[string]any{"template": "1"}},
		{"bad files json", map[string]any{"template": "1", "files": "{"}},
		{"files entry not list", map[string]any{"template": "1", "files": map[string]any{"biom": "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := qiita.JobInfo{Parameters: tt.params}.ValidateParameters()
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCompleteJobPayload(t *testing.T) {
	fake, server := newFakeQiita(t)
	client := newClient(t, server)

	artifacts := []qiita.ArtifactInfo{{
		ArtifactType: "BIOM",
		Files: []qiita.FilePath{
			{Path: "/out/table.biom", Type: "biom"},
			{Path: "/in/seqs.fna", Type: "preprocessed_fasta"},
		},
	}}
	if err := client.CompleteJob(context.Background(), "job-1", true, artifacts, ""); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.completed["success"] != true {
		t.Fatalf("success = %v", fake.completed["success"])
	}
	artifact, ok := fake.completed["artifacts"].(map[string]any)["null"].(map[string]any)
	if !ok {
		t.Fatalf("artifacts = %v", fake.completed["artifacts"])
	}
	if artifact["artifact_type"] != "BIOM" {
		t.Fatalf("artifact_type = %v", artifact["artifact_type"])
	}
	want := []any{
		[]any{"/out/table.biom", "biom"},
		[]any{"/in/seqs.fna", "preprocessed_fasta"},
	}
	if !reflect.DeepEqual(artifact["filepaths"], want) {
		t.Fatalf("filepaths = %v", artifact["filepaths"])
	}
}

func TestCompleteJobFailureCarriesMessage(t *testing.T) {
	fake, server := newFakeQiita(t)
	client := newClient(t, server)

	if err := client.CompleteJob(context.Background(), "job-1", false, nil, "Unknown artifact type FASTA. Supported types: BIOM"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.completed["success"] != false || fake.completed["error"] != "Unknown artifact type FASTA. Supported types: BIOM" {
		t.Fatalf("unexpected payload %v", fake.completed)
	}
	if fake.completed["artifacts"] != nil {
		t.Fatalf("failed job should not carry artifacts: %v", fake.completed["artifacts"])
	}
}

func TestNewClientRequiresSettings(t *testing.T) {
	if _, err := qiita.NewClient("", "id", "secret"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing url: err = %v", err)
	}
	if _, err := qiita.NewClient("https://qiita.example", "", "secret"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing client id: err = %v", err)
	}
}

func TestDecodePrepData(t *testing.T) {
	metadata, err := qiita.DecodePrepData([]byte(`{"data": {"1.S1": {"flag": true, "tags": ["a", "b"]}}}`))
	if err != nil {
		t.Fatalf("DecodePrepData: %v", err)
	}
	if metadata["1.S1"]["flag"] != "true" || metadata["1.S1"]["tags"] != "a,b" {
		t.Fatalf("unexpected fields %v", metadata["1.S1"])
	}
	if _, err := qiita.DecodePrepData([]byte(`{"other": {}}`)); err == nil {
		t.Fatal("expected error when data object is missing")
	}
}

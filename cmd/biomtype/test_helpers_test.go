package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"biomtype/internal/config"
	"biomtype/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "biomtype", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	testsupport.WriteFile(t, path, string(content))
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// qiitaStub serves the plugin endpoints of a Qiita server for one job.
type qiitaStub struct {
	server *httptest.Server

	mu        sync.Mutex
	command   string
	files     map[string][]string
	prep      map[string]map[string]string
	steps     []string
	completed map[string]any
}

func newQiitaStub(t *testing.T) *qiitaStub {
	t.Helper()
	stub := &qiitaStub{command: validateCommand}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /qiita_db/authenticate/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("client_secret") != "test-secret" {
			http.Error(w, "bad credentials", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "token"})
	})
	mux.HandleFunc("GET /qiita_db/jobs/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		files, _ := json.Marshal(stub.files)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"command": stub.command,
			"status":  "running",
			"parameters": map[string]any{
				"template":      1,
				"artifact_type": "BIOM",
				"files":         string(files),
			},
		})
	})
	mux.HandleFunc("GET /qiita_db/prep_template/{id}/data/{$}", func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"data": stub.prep})
	})
	mux.HandleFunc("POST /qiita_db/jobs/{id}/step/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		stub.mu.Lock()
		stub.steps = append(stub.steps, body["step"])
		stub.mu.Unlock()
	})
	mux.HandleFunc("POST /qiita_db/jobs/{id}/complete/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		stub.mu.Lock()
		stub.completed = body
		stub.mu.Unlock()
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *qiitaStub) completion(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed == nil {
		t.Fatal("job was not completed")
	}
	return s.completed
}

package preflight

import (
	"context"
	"strings"

	"biomtype/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := CheckDirectories(cfg)
	results = append(results, CheckLedger(ctx, cfg.LedgerPath()))

	// Qiita (credentials only when configured)
	results = append(results, CheckQiita(ctx, cfg.Qiita.URL, cfg.QiitaTimeout()))
	if strings.TrimSpace(cfg.Qiita.ClientID) != "" && strings.TrimSpace(cfg.Qiita.ClientSecret) != "" {
		results = append(results, CheckQiitaAuth(ctx, cfg))
	}

	results = append(results, CheckStorage(ctx, cfg.Storage))
	return results
}

// CheckDirectories checks the work, log and state directories.
func CheckDirectories(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

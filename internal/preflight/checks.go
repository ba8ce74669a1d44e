package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"biomtype/internal/artifact"
	"biomtype/internal/config"
	"biomtype/internal/jobs"
	"biomtype/internal/qiita"
)

const defaultQiitaCheckTimeout = 5 * time.Second

// CheckQiita verifies that the Qiita server answers HTTP requests. Any
// response below 500 counts as reachable.
func CheckQiita(ctx context.Context, baseURL string, timeout time.Duration) Result {
	const name = "Qiita server"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if timeout <= 0 {
		timeout = defaultQiitaCheckTimeout
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("reachability check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckQiitaAuth verifies that the configured client credentials are
// accepted.
func CheckQiitaAuth(ctx context.Context, cfg *config.Config) Result {
	const name = "Qiita credentials"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	client, err := qiita.NewFromConfig(cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, cfg.QiitaTimeout())
	defer cancel()
	if err := client.Authenticate(checkCtx); err != nil {
		var statusErr *qiita.StatusError
		if errors.As(err, &statusErr) {
			return Result{Name: name, Detail: fmt.Sprintf("auth failed (%d)", statusErr.Code)}
		}
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Token issued"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLedger opens the job ledger and reads its status counts.
func CheckLedger(ctx context.Context, path string) Result {
	const name = "Job ledger"

	store, err := jobs.Open(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	counts, err := store.Counts(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d jobs)", path, total)}
}

// CheckStorage verifies that the archive driver can be constructed and, for
// the filesystem driver, that its root is writable.
func CheckStorage(ctx context.Context, cfg config.Storage) Result {
	const name = "Archive storage"

	store, err := artifact.Open(ctx, cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if store == nil {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if fsStore, ok := store.(*artifact.FilesystemStore); ok {
		check := CheckDirectoryAccess(name, fsStore.Root())
		return check
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s driver ready", store.Driver())}
}

// summarizeNetworkError produces a human-readable summary for connectivity failures.
func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (server unreachable)"
	}
	return err.Error()
}

package qiita

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"biomtype/internal/config"
	"biomtype/internal/logging"
	"biomtype/internal/services"
)

const (
	stageName          = "qiita"
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 4096
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger attaches a logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to a Qiita server on behalf of a plugin.
type Client struct {
	baseURL      *url.URL
	clientID     string
	clientSecret string
	http         HTTPDoer
	logger       *slog.Logger

	mu    sync.Mutex
	token string
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s returned %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL, clientID, clientSecret string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new client", "qiita url is required", nil)
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new client", "parse qiita url", err)
	}
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new client", "client id and secret are required", nil)
	}
	client := &Client{
		baseURL:      parsed,
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		http:         &http.Client{Timeout: defaultHTTPTimeout},
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a client from the [qiita] configuration section,
// trusting server_cert when one is configured.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new client", "configuration is nil", nil)
	}
	if err := cfg.RequireQiita(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new client", "", err)
	}
	httpClient, err := newHTTPClient(cfg.Qiita.ServerCert, cfg.QiitaTimeout())
	if err != nil {
		return nil, err
	}
	return NewClient(cfg.Qiita.URL, cfg.Qiita.ClientID, cfg.Qiita.ClientSecret,
		WithHTTPClient(httpClient),
		WithLogger(logging.NewComponentLogger(logger, "qiita")),
	)
}

func newHTTPClient(certPath string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &http.Client{Timeout: timeout}
	if strings.TrimSpace(certPath) == "" {
		return client, nil
	}
	pem, err := os.ReadFile(certPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "load server cert", certPath, err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "load server cert", "no certificates found in "+certPath, nil)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	client.Transport = transport
	return client, nil
}

// Authenticate obtains a fresh access token.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/qiita_db/authenticate/"), strings.NewReader(form.Encode()))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "authenticate", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "authenticate", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrExternalTool, stageName, "authenticate", "", statusError(req, resp))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "authenticate", "decode response", err)
	}
	if payload.AccessToken == "" {
		return services.Wrap(services.ErrExternalTool, stageName, "authenticate", "response carried no access token", nil)
	}

	c.mu.Lock()
	c.token = payload.AccessToken
	c.mu.Unlock()
	c.logger.Debug("qiita authenticated", logging.String(logging.FieldEventType, "qiita_authenticated"))
	return nil
}

// get issues a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// post issues a POST request with a JSON body and decodes into out when set.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.currentToken() == "" {
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.logger.Debug("qiita token rejected; re-authenticating",
			logging.String("path", path),
			logging.Int("status", resp.StatusCode),
		)
		if err := c.Authenticate(ctx); err != nil {
			return err
		}
		if resp, err = c.send(ctx, method, path, body); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		marker := services.ErrExternalTool
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return services.Wrap(marker, stageName, method+" "+path, "", statusError(resp.Request, resp))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, method+" "+path, "decode response", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, method+" "+path, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		marker := services.ErrExternalTool
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, stageName, method+" "+path, "request failed", err)
	}
	return resp, nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func statusError(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	if req != nil {
		statusErr.Method = req.Method
		statusErr.Path = req.URL.Path
	}
	return statusErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

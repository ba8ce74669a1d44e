package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeQiita(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeValidation()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeQiita() error {
	c.Qiita.URL = strings.TrimRight(strings.TrimSpace(c.Qiita.URL), "/")
	if c.Qiita.URL == "" {
		c.Qiita.URL = defaultQiitaURL
	}
	c.Qiita.ClientID = strings.TrimSpace(c.Qiita.ClientID)
	if c.Qiita.ClientID == "" {
		if value, ok := os.LookupEnv(envClientID); ok {
			c.Qiita.ClientID = strings.TrimSpace(value)
		}
	}
	c.Qiita.ClientSecret = strings.TrimSpace(c.Qiita.ClientSecret)
	if c.Qiita.ClientSecret == "" {
		if value, ok := os.LookupEnv(envClientSecret); ok {
			c.Qiita.ClientSecret = strings.TrimSpace(value)
		}
	}
	c.Qiita.ServerCert = strings.TrimSpace(c.Qiita.ServerCert)
	if c.Qiita.ServerCert == "" {
		if value, ok := os.LookupEnv(envServerCert); ok {
			c.Qiita.ServerCert = strings.TrimSpace(value)
		}
	}
	if c.Qiita.ServerCert != "" {
		var err error
		if c.Qiita.ServerCert, err = expandPath(c.Qiita.ServerCert); err != nil {
			return fmt.Errorf("qiita.server_cert: %w", err)
		}
	}
	if c.Qiita.TimeoutSeconds == 0 {
		c.Qiita.TimeoutSeconds = defaultQiitaTimeout
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageNone
	}
	if strings.TrimSpace(c.Storage.FSRoot) == "" {
		c.Storage.FSRoot = defaultArchiveRoot
	}
	var err error
	if c.Storage.FSRoot, err = expandPath(c.Storage.FSRoot); err != nil {
		return fmt.Errorf("storage.fs_root: %w", err)
	}
	c.Storage.S3Bucket = strings.TrimSpace(c.Storage.S3Bucket)
	c.Storage.S3Region = strings.TrimSpace(c.Storage.S3Region)
	if c.Storage.S3Region == "" {
		c.Storage.S3Region = defaultS3Region
	}
	c.Storage.S3Endpoint = strings.TrimSpace(c.Storage.S3Endpoint)
	c.Storage.S3Prefix = strings.Trim(strings.TrimSpace(c.Storage.S3Prefix), "/")
	c.Storage.S3AccessKey = strings.TrimSpace(c.Storage.S3AccessKey)
	c.Storage.S3SecretKey = strings.TrimSpace(c.Storage.S3SecretKey)
	return nil
}

func (c *Config) normalizeMetrics() error {
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
	if c.Metrics.Textfile == "" {
		return nil
	}
	var err error
	if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeValidation() {
	c.Validation.GeneratedBy = strings.TrimSpace(c.Validation.GeneratedBy)
	if c.Validation.GeneratedBy == "" {
		c.Validation.GeneratedBy = defaultGeneratedBy
	}
	if c.Validation.LockTimeoutSeconds == 0 {
		c.Validation.LockTimeoutSeconds = defaultLockTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

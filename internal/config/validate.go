package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQiita(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateQiita() error {
	parsed, err := url.Parse(c.Qiita.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("qiita.url %q must be an absolute http(s) URL", c.Qiita.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("qiita.url scheme %q is not supported", parsed.Scheme)
	}
	return ensurePositiveMap(map[string]int{
		"qiita.timeout_seconds": c.Qiita.TimeoutSeconds,
	})
}

func (c *Config) validateValidation() error {
	return ensurePositiveMap(map[string]int{
		"validation.lock_timeout_seconds": c.Validation.LockTimeoutSeconds,
	})
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageNone, StorageMemory:
		return nil
	case StorageFS:
		if strings.TrimSpace(c.Storage.FSRoot) == "" {
			return errors.New("storage.fs_root must be set when storage.driver is fs")
		}
		return nil
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket must be set when storage.driver is s3")
		}
		if (c.Storage.S3AccessKey == "") != (c.Storage.S3SecretKey == "") {
			return errors.New("storage.s3_access_key and storage.s3_secret_key must be set together")
		}
		return nil
	default:
		return fmt.Errorf("storage.driver %q is not one of none, fs, s3, memory", c.Storage.Driver)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

// Package config loads, normalizes, and validates biomtype configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// QIITA_CLIENT_ID, QIITA_CLIENT_SECRET and QIITA_SERVER_CERT. The Config type
// centralizes every knob the CLI needs so working directories, the job ledger
// and the Qiita credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

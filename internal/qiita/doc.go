// Package qiita is a small client for the Qiita REST API used by type plugins.
//
// It authenticates with OAuth client credentials, fetches prep information,
// reads processing job parameters, reports job steps and completes jobs. A
// 400 or 401 response triggers one re-authentication before the request is
// retried. Failures are tagged with the services error markers so callers can
// classify them.
package qiita

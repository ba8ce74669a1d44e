// Package preflight provides readiness checks for the directories, the Qiita
// server and the archive storage that biomtype depends on.
//
// The "biomtype check" command runs RunAll and renders every Result. The run
// command calls the directory checks before starting a job so a missing work
// directory fails fast instead of after the prep information download.
//
// Checks for optional features are skipped when the feature is not configured.
package preflight

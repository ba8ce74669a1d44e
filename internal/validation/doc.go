// Package validation runs the validate job of the BIOM type plugin.
//
// Validator.Validate checks the artifact type, collects the prep information,
// reconciles the table's sample identifiers with it, rewrites and saves the
// table when a deterministic mapping exists, and cross-checks the observation
// identifiers against the representative set when one was uploaded. Progress
// is reported through a StepReporter using the step names Qiita shows to
// users.
//
// Rejections are returned as an Outcome with Success false and a message for
// the submitter; the error return is reserved for failures of the run itself
// (network, filesystem, bad configuration), tagged with the services markers.
package validation

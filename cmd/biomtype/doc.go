// Command biomtype is the BIOM artifact type plugin for Qiita.
//
// Qiita launches `biomtype run <url> <job-id> <output-dir>` for every validate
// job; the command fetches the job parameters, reconciles the uploaded table
// with the prep information, reports steps while it works and completes the
// job with the validated artifact or a message for the submitter.
//
// The remaining commands are operator tools:
//
//	validate   run the same workflow against local files
//	reconcile  print the sample id verdict for a table and a prep file
//	inspect    summarize a BIOM table
//	jobs       list, show and prune the local job ledger
//	check      run preflight checks against the configuration
//	config     create or validate the configuration file
package main

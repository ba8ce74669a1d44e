// Package testsupport holds fixtures shared by package tests: temp-directory
// configs, an opened job ledger, and writers for BIOM, FASTA and prep
// information files.
package testsupport

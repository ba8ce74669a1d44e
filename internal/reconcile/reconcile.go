package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RunPrefixField is the prep information column holding the identifier a
// sample carries in the submitted table.
const RunPrefixField = "run_prefix"

// ErrInvalidInput marks precondition violations by the caller.
var ErrInvalidInput = errors.New("invalid reconcile input")

// Metadata maps accepted sample identifiers to their prep information fields.
type Metadata map[string]map[string]string

// Kind tags the outcome of a reconciliation.
type Kind int

const (
	KindUnchanged Kind = iota
	KindRemapped
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnchanged:
		return "unchanged"
	case KindRemapped:
		return "remapped"
	case KindRejected:
		return "rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Problem classifies a rejection.
type Problem string

const (
	ProblemNone               Problem = ""
	ProblemIdentifierMismatch Problem = "identifier_mismatch"
	ProblemMetadataIncomplete Problem = "metadata_incomplete"
)

// MismatchMessage is the rejection reason when no mapping can be derived.
const MismatchMessage = "The sample ids in the BIOM table do not match the ones in the prep information. " +
	"Please, provide the column \"run_prefix\" in the prep information to map the existing sample ids " +
	"to the prep information sample ids."

// Verdict is the single result of a Reconcile call.
//
// Mapping is set only for KindRemapped; Reason, Problem and Missing only for
// KindRejected.
type Verdict struct {
	Kind    Kind
	Mapping map[string]string
	Problem Problem
	Reason  string
	Missing []string
}

// Unchanged reports whether the submitted identifiers are already valid.
func (v Verdict) Unchanged() bool { return v.Kind == KindUnchanged }

// Remapped reports whether a rewrite mapping was produced.
func (v Verdict) Remapped() bool { return v.Kind == KindRemapped }

// Rejected reports whether the identifiers cannot be reconciled.
func (v Verdict) Rejected() bool { return v.Kind == KindRejected }

// IncompleteMessage renders the rejection reason for submitted identifiers that
// have no counterpart in the prep information.
func IncompleteMessage(missing []string) string {
	return "Your prep information is missing samples that are present in your BIOM table: " +
		strings.Join(missing, ", ")
}

// Reconcile compares the submitted identifiers with the accepted metadata.
//
// The accepted set must be non-empty. When a rewrite is needed it must also be
// schema-homogeneous: either every record carries run_prefix or none does.
// The record inspected by the prefix rule is the lexicographically smallest
// accepted identifier.
func Reconcile(accepted Metadata, submitted []string) (Verdict, error) {
	if len(accepted) == 0 {
		return Verdict{}, fmt.Errorf("%w: accepted identifier set is empty", ErrInvalidInput)
	}
	unique := dedupe(submitted)
	if subsetOf(unique, accepted) {
		return Verdict{Kind: KindUnchanged}, nil
	}

	hasRunPrefix, err := runPrefixPresence(accepted)
	if err != nil {
		return Verdict{}, err
	}

	var mapping map[string]string
	if hasRunPrefix {
		var ambiguous []string
		mapping, ambiguous = invertRunPrefix(accepted, unique)
		if len(ambiguous) > 0 {
			return rejected(ProblemIdentifierMismatch,
				fmt.Sprintf("The run_prefix values %s are shared by more than one sample in the prep information; "+
					"the BIOM sample ids cannot be mapped unambiguously.", strings.Join(ambiguous, ", ")),
				nil), nil
		}
	} else {
		mapping = prefixMapping(sampleIdentifier(accepted), unique, accepted)
		if mapping == nil {
			return rejected(ProblemIdentifierMismatch, MismatchMessage, nil), nil
		}
	}

	var missing []string
	for _, id := range unique {
		if _, ok := mapping[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return rejected(ProblemMetadataIncomplete, IncompleteMessage(missing), missing), nil
	}
	return Verdict{Kind: KindRemapped, Mapping: mapping}, nil
}

func rejected(problem Problem, reason string, missing []string) Verdict {
	return Verdict{Kind: KindRejected, Problem: problem, Reason: reason, Missing: missing}
}

func runPrefixPresence(accepted Metadata) (bool, error) {
	with, without := 0, 0
	for _, fields := range accepted {
		if _, ok := fields[RunPrefixField]; ok {
			with++
		} else {
			without++
		}
	}
	if with > 0 && without > 0 {
		return false, fmt.Errorf("%w: %d of %d prep information records lack the %s column",
			ErrInvalidInput, without, with+without, RunPrefixField)
	}
	return with > 0, nil
}

// invertRunPrefix maps run_prefix values to accepted identifiers, restricted to
// the submitted identifiers. Submitted ids whose run_prefix is claimed by more
// than one accepted sample are returned as ambiguous.
func invertRunPrefix(accepted Metadata, submitted []string) (map[string]string, []string) {
	owners := make(map[string][]string, len(accepted))
	for id, fields := range accepted {
		prefix := fields[RunPrefixField]
		// An empty run_prefix claims no identifier; tables never carry empty ids.
		if prefix == "" {
			continue
		}
		owners[prefix] = append(owners[prefix], id)
	}
	mapping := make(map[string]string, len(submitted))
	var ambiguous []string
	for _, id := range submitted {
		candidates := owners[id]
		switch len(candidates) {
		case 0:
		case 1:
			mapping[id] = candidates[0]
		default:
			ambiguous = append(ambiguous, id)
		}
	}
	sort.Strings(ambiguous)
	return mapping, ambiguous
}

// prefixMapping returns nil unless every prefixed submitted id is accepted.
func prefixMapping(sample string, submitted []string, accepted Metadata) map[string]string {
	prefix, _, _ := strings.Cut(sample, ".")
	mapping := make(map[string]string, len(submitted))
	for _, id := range submitted {
		candidate := prefix + "." + id
		if _, ok := accepted[candidate]; !ok {
			return nil
		}
		mapping[id] = candidate
	}
	return mapping
}

func sampleIdentifier(accepted Metadata) string {
	var first string
	found := false
	for id := range accepted {
		if !found || id < first {
			first, found = id, true
		}
	}
	return first
}

func subsetOf(ids []string, accepted Metadata) bool {
	for _, id := range ids {
		if _, ok := accepted[id]; !ok {
			return false
		}
	}
	return true
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

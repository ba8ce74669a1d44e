// Package crossval checks that the feature identifiers of a count table match
// the record identifiers of its companion sequence file.
package crossval

import "strings"

// Result lists identifiers that disagree between the table and the file.
type Result struct {
	// ExtraIDs are file record ids with no remaining table counterpart, in file order.
	ExtraIDs []string
	// MissingIDs are table feature ids no file record consumed, in table order.
	MissingIDs []string
}

// OK reports whether both sides agree.
func (r Result) OK() bool {
	return len(r.ExtraIDs) == 0 && len(r.MissingIDs) == 0
}

// Message renders the extra-in-file and missing-from-file diagnostics,
// newline-joined when both apply. It is empty for a successful result.
func (r Result) Message() string {
	var parts []string
	if len(r.ExtraIDs) > 0 {
		parts = append(parts, "The representative set sequence file includes observations not found in the BIOM table: "+
			strings.Join(r.ExtraIDs, ", "))
	}
	if len(r.MissingIDs) > 0 {
		parts = append(parts, "The representative set sequence file is missing observation ids found in the BIOM table: "+
			strings.Join(r.MissingIDs, ", "))
	}
	return strings.Join(parts, "\n")
}

// CrossValidate walks fileRecordIDs, consuming one matching table id per
// record. Each table id can be consumed once, so a repeated file record is
// reported as extra.
func CrossValidate(tableFeatureIDs []string, fileRecordIDs []string) Result {
	remaining := make(map[string]int, len(tableFeatureIDs))
	for _, id := range tableFeatureIDs {
		remaining[id]++
	}

	var result Result
	for _, id := range fileRecordIDs {
		if remaining[id] > 0 {
			remaining[id]--
			continue
		}
		result.ExtraIDs = append(result.ExtraIDs, id)
	}
	for _, id := range tableFeatureIDs {
		if remaining[id] > 0 {
			remaining[id]--
			result.MissingIDs = append(result.MissingIDs, id)
		}
	}
	return result
}

// Package biom models sample × observation count tables in the Biological
// Observation Matrix format.
//
// Tables are read and written in the JSON-based BIOM 1.0 layout, with either a
// sparse or dense matrix on input and a sparse matrix on output. The Table type
// exposes the identifier operations the validation workflow relies on: IDs
// returns the ordered identifiers of an axis and UpdateIDs rewrites them from a
// mapping, failing with *UpdateError when the mapping does not cover every
// current identifier.
package biom

// Package projectfile implements the ordered, comment-preserving
// project.yml document. Edits are staged in memory and persisted or
// discarded explicitly, which is what makes the transactional
// operations in pkg/ops possible: a failed preparation simply reloads
// the document to its last-saved bytes.
package projectfile

package projectfile

import (
	"fmt"
	"path/filepath"
)

// Filename is the project configuration file name inside a project
// directory.
const Filename = "project.yml"

// ProjectFile is the project.yml document for a project directory.
type ProjectFile struct {
	*Document
	corrupted string
}

// Load loads the project.yml for the given directory. Loading never
// fails: a missing file yields an empty document, and an unparsable
// file yields an empty document with Corrupted set, so the project can
// surface the problem instead of crashing.
func Load(directory string) *ProjectFile {
	path := filepath.Join(directory, Filename)
	doc, err := NewDocument(path)
	if err != nil {
		empty := &Document{path: path, root: emptyMapping()}
		return &ProjectFile{
			Document:  empty,
			corrupted: fmt.Sprintf("%v", err),
		}
	}
	return &ProjectFile{Document: doc}
}

// Corrupted returns a description of why the on-disk file could not be
// parsed, or "" when the file is readable.
func (f *ProjectFile) Corrupted() string {
	return f.corrupted
}

// Reload discards in-memory edits and restores the last-saved state.
// It also clears or refreshes the corrupted marker.
func (f *ProjectFile) Reload() error {
	err := f.Document.Reload()
	if err != nil {
		f.corrupted = fmt.Sprintf("%v", err)
		f.Document.root = emptyMapping()
		f.Document.dirty = false
		return err
	}
	f.corrupted = ""
	return nil
}

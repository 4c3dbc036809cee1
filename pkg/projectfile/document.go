package projectfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Document is an ordered, comment-preserving YAML document with
// path-addressed access. Values are edited in memory only; nothing
// touches the backing file except Save and Reload.
//
// The document is backed by a yaml.Node tree, which carries key order
// and comment metadata opaquely. Mutations act on the structural view
// and leave unknown keys and their comments intact.
type Document struct {
	path  string
	root  *yaml.Node
	dirty bool
}

// NewDocument creates a document backed by the given file path and
// loads the current on-disk content. A missing file yields an empty
// document; a file that cannot be parsed yields an error.
func NewDocument(path string) (*Document, error) {
	d := &Document{path: path}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the backing file path.
func (d *Document) Path() string {
	return d.path
}

// Dirty reports whether the in-memory state has unsaved edits.
func (d *Document) Dirty() bool {
	return d.dirty
}

// Reload discards all in-memory edits and restores the last-saved
// state, including comments and formatting that do not participate in
// the data model.
func (d *Document) Reload() error {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		d.root = emptyMapping()
		d.dirty = false
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", d.path, err)
	}

	root := emptyMapping()
	if len(doc.Content) > 0 {
		if doc.Content[0].Kind != yaml.MappingNode {
			return fmt.Errorf("%s: document root must be a mapping", d.path)
		}
		root = doc.Content[0]
	}
	d.root = root
	d.dirty = false
	return nil
}

// Save persists the in-memory state to the backing file. Callers are
// expected to have checked validation problems first; Save itself only
// fails on I/O errors.
func (d *Document) Save() error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", d.path, err)
	}
	if err := os.WriteFile(d.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.path, err)
	}
	d.dirty = false
	return nil
}

// Get returns the decoded value at the given key path, or (nil, false)
// when any path element is absent.
func (d *Document) Get(path ...string) (interface{}, bool) {
	node := d.lookup(path)
	if node == nil {
		return nil, false
	}
	var value interface{}
	if err := node.Decode(&value); err != nil {
		return nil, false
	}
	return value, true
}

// GetString returns the scalar string value at the given key path, or
// "" when the path is absent or not a scalar.
func (d *Document) GetString(path ...string) string {
	node := d.lookup(path)
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

// Has reports whether the given key path exists.
func (d *Document) Has(path ...string) bool {
	return d.lookup(path) != nil
}

// IsMapping reports whether the value at the given key path is a mapping.
func (d *Document) IsMapping(path ...string) bool {
	node := d.lookup(path)
	return node != nil && node.Kind == yaml.MappingNode
}

// Keys returns the ordered keys of the mapping at the given path, or
// nil when the path is absent or not a mapping.
func (d *Document) Keys(path ...string) []string {
	node := d.lookup(path)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// Set writes a value at the given key path, creating intermediate
// mappings as needed. Replacing an existing value keeps the comments
// attached to it. The only failure mode is a structurally invalid
// path, where an intermediate key holds a non-mapping value.
func (d *Document) Set(path []string, value interface{}) error {
	if len(path) == 0 {
		return fmt.Errorf("empty key path")
	}
	node := d.root
	for _, key := range path[:len(path)-1] {
		child := mappingValue(node, key)
		if child == nil {
			child = emptyMapping()
			appendPair(node, key, child)
		} else if child.Kind != yaml.MappingNode {
			return fmt.Errorf("key %q holds a %s, not a mapping", key, kindName(child.Kind))
		}
		node = child
	}

	newNode, err := encodeValue(value)
	if err != nil {
		return err
	}

	last := path[len(path)-1]
	if existing := mappingValue(node, last); existing != nil {
		// Replace content in place so comments survive.
		newNode.HeadComment = existing.HeadComment
		newNode.LineComment = existing.LineComment
		newNode.FootComment = existing.FootComment
		*existing = *newNode
	} else {
		appendPair(node, last, newNode)
	}
	d.dirty = true
	return nil
}

// Unset removes the entry at the given key path. Removing an absent
// path is a no-op.
func (d *Document) Unset(path ...string) {
	if len(path) == 0 {
		return
	}
	node := d.root
	for _, key := range path[:len(path)-1] {
		node = mappingValue(node, key)
		if node == nil || node.Kind != yaml.MappingNode {
			return
		}
	}
	last := path[len(path)-1]
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == last {
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			d.dirty = true
			return
		}
	}
}

// StringList returns the scalar items of the sequence at the given
// path. An absent path or a non-sequence yields nil.
func (d *Document) StringList(path ...string) []string {
	node := d.lookup(path)
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	items := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode {
			items = append(items, item.Value)
		}
	}
	return items
}

// AppendToList appends scalar items to the sequence at the given path,
// creating the sequence if absent. Existing items and their comments
// are untouched.
func (d *Document) AppendToList(path []string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	node := d.root
	for _, key := range path[:len(path)-1] {
		child := mappingValue(node, key)
		if child == nil {
			child = emptyMapping()
			appendPair(node, key, child)
		} else if child.Kind != yaml.MappingNode {
			return fmt.Errorf("key %q holds a %s, not a mapping", key, kindName(child.Kind))
		}
		node = child
	}

	last := path[len(path)-1]
	seq := mappingValue(node, last)
	if seq == nil {
		seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		appendPair(node, last, seq)
	} else if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("key %q holds a %s, not a sequence", last, kindName(seq.Kind))
	}
	for _, value := range values {
		seq.Content = append(seq.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: value,
		})
	}
	d.dirty = true
	return nil
}

// FilterList removes from the sequence at the given path every scalar
// item the keep function rejects, in place, preserving the order and
// comments of surviving items. Absent paths are a no-op.
func (d *Document) FilterList(path []string, keep func(string) bool) {
	node := d.lookup(path)
	if node == nil || node.Kind != yaml.SequenceNode {
		return
	}
	i := 0
	for i < len(node.Content) {
		item := node.Content[i]
		if item.Kind == yaml.ScalarNode && !keep(item.Value) {
			node.Content = append(node.Content[:i], node.Content[i+1:]...)
			d.dirty = true
		} else {
			i++
		}
	}
}

// lookup walks the mapping tree and returns the value node at the
// given path, or nil.
func (d *Document) lookup(path []string) *yaml.Node {
	node := d.root
	for _, key := range path {
		if node == nil || node.Kind != yaml.MappingNode {
			return nil
		}
		node = mappingValue(node, key)
	}
	return node
}

// mappingValue returns the value node for key within a mapping node,
// or nil.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// appendPair appends a key/value pair to a mapping node.
func appendPair(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value)
}

// encodeValue builds a yaml node from a Go value.
func encodeValue(value interface{}) (*yaml.Node, error) {
	if value == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	node := &yaml.Node{}
	if err := node.Encode(value); err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	return node, nil
}

// emptyMapping returns a fresh empty mapping node.
func emptyMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// kindName names a yaml node kind for error messages.
func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

package descriptor

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// VersionEntry is one item of a descriptor's version list: a bare version
// string, or a single-key mapping from the version to auxiliary metadata.
type VersionEntry struct {
	Value string
	// Metadata is the value node of the mapping form, nil for a bare string.
	Metadata *yaml.Node

	node *yaml.Node
}

// NewVersionEntry returns a bare version entry.
func NewVersionEntry(value string) VersionEntry {
	return VersionEntry{Value: value}
}

// HasMetadata reports whether the entry carries auxiliary metadata.
func (e VersionEntry) HasMetadata() bool {
	return e.Metadata != nil
}

// CompatibleWithCore returns the compatible-with-quarkus-core versions listed
// in the entry's metadata.
func (e VersionEntry) CompatibleWithCore() []string {
	if e.Metadata == nil || e.Metadata.Kind != yaml.MappingNode {
		return nil
	}

	n := mappingValue(e.Metadata, KeyCompatibleWithCore)
	if n == nil {
		return nil
	}

	if n.Kind == yaml.ScalarNode {
		if v := strings.TrimSpace(n.Value); v != "" && n.Tag != "!!null" {
			return []string{v}
		}

		return nil
	}

	return scalarValues(n)
}

// toNode returns the sequence item for the entry. Entries read from a
// descriptor reuse their original node so style and comments survive.
func (e VersionEntry) toNode() *yaml.Node {
	if e.node != nil {
		return e.node
	}

	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Value}
	if e.Metadata == nil {
		return key
	}

	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{key, e.Metadata}}
}

// Versions returns the version list in document order.
func (d *Descriptor) Versions() []VersionEntry {
	seq := d.lookup(KeyVersions)
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil
	}

	entries := make([]VersionEntry, 0, len(seq.Content))
	for _, item := range seq.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			if v := strings.TrimSpace(item.Value); v != "" {
				entries = append(entries, VersionEntry{Value: v, node: item})
			}
		case yaml.MappingNode:
			if len(item.Content) >= 2 {
				entries = append(entries, VersionEntry{
					Value:    strings.TrimSpace(item.Content[0].Value),
					Metadata: item.Content[1],
					node:     item,
				})
			}
		}
	}

	return entries
}

// VersionValues returns just the version strings.
func (d *Descriptor) VersionValues() []string {
	entries := d.Versions()

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}

	return out
}

// SetVersions replaces the version list. Nothing else in the document changes.
// A non-empty list is written in block style, an empty one as [].
func (d *Descriptor) SetVersions(entries []VersionEntry) {
	content := make([]*yaml.Node, len(entries))
	for i, e := range entries {
		content[i] = e.toNode()
	}

	seq := d.lookup(KeyVersions)
	if seq != nil && seq.Kind == yaml.SequenceNode {
		if len(content) == 0 {
			seq.Style |= yaml.FlowStyle
		} else {
			seq.Style &^= yaml.FlowStyle
		}

		seq.Content = content

		return
	}

	newSeq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: content}
	if len(content) == 0 {
		newSeq.Style = yaml.FlowStyle
	}

	if seq != nil {
		*seq = *newSeq
		return
	}

	d.root.Content = append(d.root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: KeyVersions},
		newSeq,
	)
}

// Package descriptor loads, inspects and rewrites platform and extension
// descriptors. A descriptor is kept as a YAML node tree so that a rewrite only
// touches the version list and leaves every other field, comment and key
// order as it was.
package descriptor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quarkusio/jbang-catalog/internal/maven"
)

// Kind distinguishes platform descriptors from extension descriptors.
type Kind string

const (
	// KindPlatform is a bill-of-materials platform descriptor under platforms/.
	KindPlatform Kind = "platform"
	// KindExtension is a single extension descriptor under extensions/.
	KindExtension Kind = "extension"
)

// Descriptor field names.
const (
	KeyEnabled             = "enabled"
	KeyRepository          = "maven-repository"
	KeyGroupID             = "group-id"
	KeyArtifactID          = "artifact-id"
	KeyPlatformKey         = "platform-key"
	KeyClassifier          = "classifier"
	KeyClassifierAsVersion = "classifier-as-version"
	KeyServerID            = "server-id"
	KeyVersions            = "versions"
	KeyExcludeVersions     = "exclude-versions"
	KeyPinnedVersions      = "pinned-versions"
	KeyPinnedStreams       = "pinned-streams"
	KeyUnlistedStreams     = "unlisted-streams"
	KeyLTSStreams          = "lts-streams"
	KeyCompatibleWithCore  = "compatible-with-quarkus-core"
)

// Descriptor is one platform or extension descriptor file.
type Descriptor struct {
	Path string
	Kind Kind

	doc  *yaml.Node
	root *yaml.Node
}

// Load reads and parses the descriptor at path.
func Load(path string, kind Kind) (*Descriptor, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading descriptor %s: %w", path, err)
	}

	d, err := Parse(data, kind)
	if err != nil {
		return nil, fmt.Errorf("parsing descriptor %s: %w", path, err)
	}

	d.Path = path

	return d, nil
}

// Parse builds a Descriptor from raw YAML. group-id and artifact-id are required.
func Parse(data []byte, kind Kind) (*Descriptor, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("descriptor must be a YAML mapping")
	}

	d := &Descriptor{Kind: kind, doc: &doc, root: doc.Content[0]}

	if d.GroupID() == "" {
		return nil, fmt.Errorf("%s is required", KeyGroupID)
	}

	if d.ArtifactID() == "" {
		return nil, fmt.Errorf("%s is required", KeyArtifactID)
	}

	return d, nil
}

// Name returns the descriptor's file name, or its coordinate when it has no path.
func (d *Descriptor) Name() string {
	if d.Path != "" {
		return filepath.Base(d.Path)
	}

	return d.GroupID() + ":" + d.ArtifactID()
}

// Enabled reports the enabled flag. Missing or unreadable values mean enabled.
func (d *Descriptor) Enabled() bool {
	n := d.lookup(KeyEnabled)
	if n == nil {
		return true
	}

	var enabled bool
	if err := n.Decode(&enabled); err != nil {
		return true
	}

	return enabled
}

// Repositories returns the repository base URLs in order. maven-repository
// may be a single string or a sequence; the default is Maven Central.
func (d *Descriptor) Repositories() []string {
	n := d.lookup(KeyRepository)
	if n == nil {
		return []string{maven.CentralRepository}
	}

	var repos []string

	switch n.Kind {
	case yaml.ScalarNode:
		if v := strings.TrimSpace(n.Value); v != "" && n.Tag != "!!null" {
			repos = append(repos, v)
		}
	case yaml.SequenceNode:
		repos = scalarValues(n)
	}

	if len(repos) == 0 {
		return []string{maven.CentralRepository}
	}

	return repos
}

// GroupID returns group-id.
func (d *Descriptor) GroupID() string { return d.scalar(KeyGroupID) }

// ArtifactID returns artifact-id.
func (d *Descriptor) ArtifactID() string { return d.scalar(KeyArtifactID) }

// PlatformKey returns platform-key.
func (d *Descriptor) PlatformKey() string { return d.scalar(KeyPlatformKey) }

// Classifier returns classifier.
func (d *Descriptor) Classifier() string { return d.scalar(KeyClassifier) }

// ServerID returns server-id, the key into the repository credential store.
func (d *Descriptor) ServerID() string { return d.scalar(KeyServerID) }

// ClassifierAsVersion reports whether each version doubles as its classifier.
func (d *Descriptor) ClassifierAsVersion() bool {
	n := d.lookup(KeyClassifierAsVersion)
	if n == nil {
		return false
	}

	var b bool
	if err := n.Decode(&b); err != nil {
		return false
	}

	return b
}

// ExcludeVersions returns the exclusion patterns.
func (d *Descriptor) ExcludeVersions() []string { return d.sequence(KeyExcludeVersions) }

// PinnedVersions returns pinned-versions in order.
func (d *Descriptor) PinnedVersions() []string { return d.sequence(KeyPinnedVersions) }

// PinnedStreams returns pinned-streams.
func (d *Descriptor) PinnedStreams() []string { return d.sequence(KeyPinnedStreams) }

// UnlistedStreams returns unlisted-streams.
func (d *Descriptor) UnlistedStreams() []string { return d.sequence(KeyUnlistedStreams) }

// LTSStreams returns lts-streams.
func (d *Descriptor) LTSStreams() []string { return d.sequence(KeyLTSStreams) }

// Marshal encodes the full document.
func (d *Descriptor) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(d.doc); err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}

	return buf.Bytes(), nil
}

// Save writes the descriptor back to its path, replacing the file atomically.
func (d *Descriptor) Save() error {
	if d.Path == "" {
		return fmt.Errorf("descriptor has no path")
	}

	data, err := d.Marshal()
	if err != nil {
		return err
	}

	return writeFileAtomic(d.Path, data)
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing descriptor %s: %w", path, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("writing descriptor %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing descriptor %s: %w", path, err)
	}

	if err := os.Chmod(tmpName, mode); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing descriptor %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing descriptor %s: %w", path, err)
	}

	return nil
}

// lookup returns the value node for key in the root mapping.
func (d *Descriptor) lookup(key string) *yaml.Node {
	return mappingValue(d.root, key)
}

func (d *Descriptor) scalar(key string) string {
	n := d.lookup(key)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}

	return strings.TrimSpace(n.Value)
}

// sequence reads a list of strings. Mapping items contribute their first key.
func (d *Descriptor) sequence(key string) []string {
	n := d.lookup(key)
	if n == nil {
		return nil
	}

	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!null" || n.Value == "" {
			return nil
		}

		return []string{n.Value}
	}

	return scalarValues(n)
}

func scalarValues(seq *yaml.Node) []string {
	if seq.Kind != yaml.SequenceNode {
		return nil
	}

	out := make([]string, 0, len(seq.Content))
	for _, item := range seq.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			if v := strings.TrimSpace(item.Value); v != "" {
				out = append(out, v)
			}
		case yaml.MappingNode:
			if len(item.Content) >= 2 {
				out = append(out, item.Content[0].Value)
			}
		}
	}

	return out
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}

	return nil
}

// Package maven models Maven artifact coordinates, versions, repository
// metadata and the server credentials kept in settings.xml.
package maven

import (
	"fmt"
	"strings"
)

// CentralRepository is used when a descriptor names no repository.
const CentralRepository = "https://repo1.maven.org/maven2/"

// Coordinate identifies a single artifact in a Maven repository.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Type       string
}

// Key returns the groupId:artifactId pair, used as the platform key of members.
func (c Coordinate) Key() string {
	return c.GroupID + ":" + c.ArtifactID
}

// String renders the coordinate in the same layout ParseCoordinate accepts.
func (c Coordinate) String() string {
	switch {
	case c.Classifier != "":
		return strings.Join([]string{c.GroupID, c.ArtifactID, c.Classifier, c.typeOrDefault(), c.Version}, ":")
	case c.Type != "":
		return strings.Join([]string{c.GroupID, c.ArtifactID, c.Type, c.Version}, ":")
	default:
		return strings.Join([]string{c.GroupID, c.ArtifactID, c.Version}, ":")
	}
}

func (c Coordinate) typeOrDefault() string {
	if c.Type == "" {
		return "jar"
	}

	return c.Type
}

// WithClassifier returns a copy of c using the given classifier.
func (c Coordinate) WithClassifier(classifier string) Coordinate {
	c.Classifier = classifier
	return c
}

// ParseCoordinate parses g:a:v, g:a:type:v and g:a:classifier:type:v.
// The version is always the last segment.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	for _, p := range parts {
		if p == "" {
			return Coordinate{}, fmt.Errorf("invalid artifact coordinate %q: empty segment", s)
		}
	}

	switch len(parts) {
	case 3:
		return Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}, nil
	case 4:
		return Coordinate{GroupID: parts[0], ArtifactID: parts[1], Type: parts[2], Version: parts[3]}, nil
	case 5:
		return Coordinate{
			GroupID:    parts[0],
			ArtifactID: parts[1],
			Classifier: parts[2],
			Type:       parts[3],
			Version:    parts[4],
		}, nil
	default:
		return Coordinate{}, fmt.Errorf("invalid artifact coordinate %q: expected 3 to 5 segments, got %d", s, len(parts))
	}
}

// ArtifactPath returns the repository-relative path of the artifact file with
// the given extension:
//
//	{group/as/path}/{artifact}/{version}/{artifact}[-{classifier}]-{version}.{ext}
func (c Coordinate) ArtifactPath(ext string) string {
	name := c.ArtifactID
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}

	name += "-" + c.Version + "." + ext

	return strings.Join([]string{groupPath(c.GroupID), c.ArtifactID, c.Version, name}, "/")
}

// MetadataPath returns the repository-relative path of maven-metadata.xml for
// a group and artifact.
func MetadataPath(groupID, artifactID string) string {
	return groupPath(groupID) + "/" + artifactID + "/maven-metadata.xml"
}

// ResolveURL joins a repository base URL and a repository-relative path.
// The base may or may not end with a slash.
func ResolveURL(repository, path string) string {
	if repository == "" {
		repository = CentralRepository
	}

	return strings.TrimRight(repository, "/") + "/" + strings.TrimLeft(path, "/")
}

func groupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}

package maven

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Metadata is the repository-level maven-metadata.xml of an artifact.
type Metadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning lists the published versions, oldest first.
type Versioning struct {
	Latest      string   `xml:"latest"`
	Release     string   `xml:"release"`
	Versions    []string `xml:"versions>version"`
	LastUpdated string   `xml:"lastUpdated"`
}

// ParseMetadata decodes a maven-metadata.xml document. Any document whose
// root element is not <metadata> is rejected.
func ParseMetadata(data []byte) (*Metadata, error) {
	var md Metadata
	if err := xml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parsing maven metadata: %w", err)
	}

	versions := md.Versioning.Versions[:0]
	for _, v := range md.Versioning.Versions {
		if v = strings.TrimSpace(v); v != "" {
			versions = append(versions, v)
		}
	}

	md.Versioning.Versions = versions

	return &md, nil
}

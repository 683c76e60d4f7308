package registry

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/quarkusio/jbang-catalog/internal/fetcher"
	"github.com/quarkusio/jbang-catalog/internal/maven"
)

// CatalogSource fetches catalogs from Maven repositories.
type CatalogSource interface {
	Catalog(ctx context.Context, req fetcher.Request) ([]byte, error)
}

// Catalog is the part of a platform catalog the publisher reads.
type Catalog struct {
	ID       string `json:"id"`
	Metadata struct {
		PlatformRelease struct {
			Members []string `json:"members"`
		} `json:"platform-release"`
	} `json:"metadata"`
}

// Members returns the member coordinates other than the catalog itself.
func (c *Catalog) Members() []string {
	out := make([]string, 0, len(c.Metadata.PlatformRelease.Members))
	for _, m := range c.Metadata.PlatformRelease.Members {
		if m == c.ID {
			continue
		}

		out = append(out, m)
	}

	return out
}

// ParseCatalog decodes the id and platform-release members of a catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := sonic.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	return &c, nil
}

// MembersRequest locates the members of a published platform catalog.
type MembersRequest struct {
	// Parent is the platform catalog that was just published.
	Parent       []byte
	Repositories []string
	ServerID     string
}

// PublishMembers fetches and publishes every member of the parent catalog as
// a type M catalog keyed by groupId:artifactId. Members are fetched with the
// member version as classifier. The first failure stops the cascade.
func (c *Client) PublishMembers(ctx context.Context, src CatalogSource, mr MembersRequest) ([]Outcome, error) {
	parent, err := ParseCatalog(mr.Parent)
	if err != nil {
		return nil, err
	}

	members := parent.Members()
	if len(members) == 0 {
		c.logger.Debug("catalog has no platform members", "id", parent.ID)
		return nil, nil
	}

	outcomes := make([]Outcome, 0, len(members))

	for _, member := range members {
		coord, err := maven.ParseCoordinate(member)
		if err != nil {
			return outcomes, fmt.Errorf("parsing platform member: %w", err)
		}

		data, err := src.Catalog(ctx, fetcher.Request{
			Repositories: mr.Repositories,
			Coordinate:   coord.WithClassifier(coord.Version),
			ServerID:     mr.ServerID,
		})
		if err != nil {
			return outcomes, fmt.Errorf("fetching platform member %s: %w", member, err)
		}

		c.logger.Info("publishing platform member", "coordinate", coord.Key()+":"+coord.Version)

		outcome, err := c.PublishCatalog(ctx, CatalogRequest{
			PlatformKey: coord.Key(),
			Catalog:     data,
			Type:        TypeMember,
			Coordinate:  coord,
		})
		if err != nil {
			return outcomes, err
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

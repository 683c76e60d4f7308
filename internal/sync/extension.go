package sync

import (
	"context"

	"github.com/quarkusio/jbang-catalog/internal/descriptor"
	"github.com/quarkusio/jbang-catalog/internal/fetcher"
	"github.com/quarkusio/jbang-catalog/internal/maven"
)

// extension publishes the extension descriptor of each listed version along
// with its compatibility records.
func (r *runner) extension(ctx context.Context, d *descriptor.Descriptor, result *Result) error {
	for _, entry := range d.Versions() {
		coord := maven.Coordinate{
			GroupID:    d.GroupID(),
			ArtifactID: d.ArtifactID(),
			Version:    entry.Value,
		}

		data, err := r.fetcher.Extension(ctx, fetcher.Request{
			Repositories: d.Repositories(),
			Coordinate:   coord,
			ServerID:     d.ServerID(),
		})
		if err != nil {
			return err
		}

		r.ui.Infof("Publishing %s:%s:%s", coord.GroupID, coord.ArtifactID, coord.Version)

		outcome, err := r.publisher.PublishExtension(ctx, data)
		if err != nil {
			return err
		}

		r.count(result, outcome)

		if cores := entry.CompatibleWithCore(); len(cores) > 0 {
			if err := r.publisher.PublishCompatibility(ctx, coord, cores); err != nil {
				return err
			}

			result.Compatibility += len(cores)
		}

		if !r.all {
			break
		}
	}

	return nil
}

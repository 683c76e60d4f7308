package sync

import (
	"context"
	"fmt"
	"slices"

	"github.com/quarkusio/jbang-catalog/internal/descriptor"
	"github.com/quarkusio/jbang-catalog/internal/fetcher"
	"github.com/quarkusio/jbang-catalog/internal/maven"
	"github.com/quarkusio/jbang-catalog/internal/registry"
)

// platform publishes the listed versions, then the pinned versions, then
// patches the platform streams.
func (r *runner) platform(ctx context.Context, d *descriptor.Descriptor, result *Result) error {
	if d.PlatformKey() == "" {
		return fmt.Errorf("%s is required", descriptor.KeyPlatformKey)
	}

	for _, v := range d.VersionValues() {
		if err := r.platformVersion(ctx, d, v, false, result); err != nil {
			return err
		}

		if !r.all {
			break
		}
	}

	for _, v := range d.PinnedVersions() {
		if err := r.platformVersion(ctx, d, v, true, result); err != nil {
			return err
		}

		if !r.all {
			break
		}
	}

	return r.streams(ctx, d, result)
}

func (r *runner) platformVersion(ctx context.Context, d *descriptor.Descriptor, version string, pinned bool, result *Result) error {
	classifier := d.Classifier()
	if d.ClassifierAsVersion() {
		classifier = version
	}

	repos := d.Repositories()

	data, err := r.fetcher.Catalog(ctx, fetcher.Request{
		Repositories: repos,
		Coordinate: maven.Coordinate{
			GroupID:    d.GroupID(),
			ArtifactID: d.ArtifactID(),
			Version:    version,
			Classifier: classifier,
			Type:       "json",
		},
		ServerID: d.ServerID(),
	})
	if err != nil {
		return err
	}

	r.ui.Infof("Publishing %s:%s:%s", d.GroupID(), d.ArtifactID(), version)

	outcome, err := r.publisher.PublishCatalog(ctx, registry.CatalogRequest{
		PlatformKey: d.PlatformKey(),
		Catalog:     data,
		Pinned:      pinned,
		Type:        registry.TypeCatalog,
		Coordinate:  maven.Coordinate{GroupID: d.GroupID(), ArtifactID: d.ArtifactID(), Version: version},
	})
	if err != nil {
		return err
	}

	r.count(result, outcome)

	members, err := r.publisher.PublishMembers(ctx, r.fetcher, registry.MembersRequest{
		Parent:       data,
		Repositories: repos,
		ServerID:     d.ServerID(),
	})
	r.count(result, members...)

	return err
}

// streams patches the union of pinned, unlisted and lts streams in sorted
// order, stopping after the first unless publishing all.
func (r *runner) streams(ctx context.Context, d *descriptor.Descriptor, result *Result) error {
	pinned := d.PinnedStreams()
	unlisted := d.UnlistedStreams()
	lts := d.LTSStreams()

	for _, stream := range StreamUnion(pinned, unlisted, lts) {
		r.ui.Infof("Patching stream %s for platform %s", stream, d.PlatformKey())

		err := r.publisher.PatchStream(ctx, registry.StreamPatch{
			PlatformKey: d.PlatformKey(),
			Stream:      stream,
			Pinned:      slices.Contains(pinned, stream),
			Unlisted:    slices.Contains(unlisted, stream),
			LTS:         slices.Contains(lts, stream),
		})
		if err != nil {
			return err
		}

		result.Streams++

		if !r.all {
			break
		}
	}

	return nil
}

// StreamUnion merges stream lists into a sorted set.
func StreamUnion(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}

	slices.Sort(out)

	return slices.Compact(out)
}

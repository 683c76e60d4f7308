// Package resolver discovers newly published versions of an artifact from the
// maven-metadata.xml of its primary repository and folds them into a
// descriptor's version list.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/quarkusio/jbang-catalog/internal/descriptor"
	"github.com/quarkusio/jbang-catalog/internal/maven"
)

// ErrNoMetadata means the metadata document was absent or unusable. It is
// recoverable: the descriptor keeps its versions and nothing is reported new.
var ErrNoMetadata = errors.New("no usable maven metadata")

// maxMetadataSize bounds the metadata body read into memory.
const maxMetadataSize = 16 << 20

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver fetches upstream metadata and computes version updates.
type Resolver struct {
	client HTTPDoer
	logger *slog.Logger
}

// New creates a Resolver. A nil client uses http.DefaultClient.
func New(client HTTPDoer, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{client: client, logger: logger}
}

// Request describes one resolution.
type Request struct {
	// Repository is the repository whose metadata is consulted.
	Repository string
	GroupID    string
	ArtifactID string
	// Authorization, when set, is sent as the Authorization header.
	Authorization string
	// Current is the descriptor's version list before the update.
	Current []descriptor.VersionEntry
	// Exclude holds full-match regular expressions.
	Exclude []string
	// FinalOnly drops Alpha, Beta and CR versions from Result.New.
	FinalOnly bool
}

// Result is the outcome of a resolution.
type Result struct {
	// Versions is the rebuilt version list, newest first.
	Versions []descriptor.VersionEntry
	// New lists versions absent from the previous list.
	New []string
	// NoMetadata is set when upstream metadata could not be used.
	NoMetadata bool
}

// FromDescriptor builds a Request from a descriptor. Extensions only report
// final versions.
func FromDescriptor(d *descriptor.Descriptor) Request {
	return Request{
		Repository: d.Repositories()[0],
		GroupID:    d.GroupID(),
		ArtifactID: d.ArtifactID(),
		Current:    d.Versions(),
		Exclude:    d.ExcludeVersions(),
		FinalOnly:  d.Kind == descriptor.KindExtension,
	}
}

// Resolve fetches the metadata for req and applies it to req.Current.
// Unusable metadata is not an error; the result then mirrors req.Current.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	excludes, err := CompilePatterns(req.Exclude)
	if err != nil {
		return nil, err
	}

	md, err := r.FetchMetadata(ctx, req.Repository, req.GroupID, req.ArtifactID, req.Authorization)
	if err != nil {
		if errors.Is(err, ErrNoMetadata) {
			r.logger.Warn("skipping version check", "artifact", req.GroupID+":"+req.ArtifactID, "err", err)

			return &Result{Versions: slices.Clone(req.Current), NoMetadata: true}, nil
		}

		return nil, err
	}

	res := Apply(md.Versioning.Versions, req.Current, excludes, r.logger)
	if req.FinalOnly {
		res.New = slices.DeleteFunc(res.New, func(v string) bool { return !maven.IsFinal(v) })
	}

	return res, nil
}

// FetchMetadata downloads and parses maven-metadata.xml for group:artifact.
func (r *Resolver) FetchMetadata(ctx context.Context, repository, groupID, artifactID, authorization string) (*maven.Metadata, error) {
	url := maven.ResolveURL(repository, maven.MetadataPath(groupID, artifactID))
	r.logger.Debug("fetching maven metadata", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating metadata request %s: %w", url, err)
	}

	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrNoMetadata, url, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	md, err := maven.ParseMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoMetadata, url, err)
	}

	if len(md.Versioning.Versions) == 0 {
		return nil, fmt.Errorf("%w: %s lists no versions", ErrNoMetadata, url)
	}

	return md, nil
}

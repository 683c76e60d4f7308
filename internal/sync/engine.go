// Package sync publishes every platform and extension descriptor of a
// catalog working directory to the extension registry.
package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/quarkusio/jbang-catalog/internal/descriptor"
	"github.com/quarkusio/jbang-catalog/internal/fetcher"
	"github.com/quarkusio/jbang-catalog/internal/maven"
	"github.com/quarkusio/jbang-catalog/internal/metrics"
	"github.com/quarkusio/jbang-catalog/internal/registry"
	"github.com/quarkusio/jbang-catalog/internal/ui"
)

// Fetcher reads catalogs and extension descriptors from Maven repositories.
type Fetcher interface {
	Catalog(ctx context.Context, req fetcher.Request) ([]byte, error)
	Extension(ctx context.Context, req fetcher.Request) ([]byte, error)
}

// Publisher writes to the registry admin API.
type Publisher interface {
	PublishExtension(ctx context.Context, descriptor []byte) (registry.Outcome, error)
	PublishCatalog(ctx context.Context, cr registry.CatalogRequest) (registry.Outcome, error)
	PublishMembers(ctx context.Context, src registry.CatalogSource, mr registry.MembersRequest) ([]registry.Outcome, error)
	PublishCompatibility(ctx context.Context, coord maven.Coordinate, coreVersions []string) error
	PatchStream(ctx context.Context, sp registry.StreamPatch) error
}

// Opts configures the publish run.
type Opts struct {
	// WorkDir holds the platforms/ and extensions/ directories.
	WorkDir string
	// All publishes every listed version and stream instead of the first.
	All       bool
	Fetcher   Fetcher
	Publisher Publisher
	UI        *ui.Writer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Result holds the outcome of a publish run.
type Result struct {
	// Descriptors counts every descriptor file found.
	Descriptors int
	Skipped     int
	Failed      []string
	// Published counts catalogs and extensions accepted by the registry.
	Published int
	// AlreadyPresent counts 409 answers.
	AlreadyPresent int
	// Simulated counts dry-run calls that were logged but not sent.
	Simulated     int
	Compatibility int
	Streams       int
}

// Run publishes every descriptor under opts.WorkDir. A failing descriptor is
// logged and recorded, and the run moves on to the next one. The returned
// error aggregates every descriptor failure; the Result is always populated.
func Run(ctx context.Context, opts *Opts) (*Result, error) {
	if opts.Fetcher == nil || opts.Publisher == nil {
		return nil, fmt.Errorf("publish requires a fetcher and a publisher")
	}

	entries, err := descriptor.Discover(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("discovering descriptors: %w", err)
	}

	r := newRunner(opts)
	result := &Result{Descriptors: len(entries)}

	var errs *multierror.Error

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}

		r.ui.Section("Processing %s %s", e.Kind, e.Path)

		skipped, err := r.process(ctx, e, result)

		switch {
		case err != nil:
			r.logger.Error("error while processing descriptor", "kind", e.Kind, "path", e.Path, "err", err)
			r.ui.Errorf("%s: %v", e.Path, err)
			r.metrics.Descriptor(string(e.Kind), "failed")

			result.Failed = append(result.Failed, e.Path)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", e.Path, err))
		case skipped:
			r.metrics.Descriptor(string(e.Kind), "skipped")
			result.Skipped++
		default:
			r.metrics.Descriptor(string(e.Kind), "ok")
		}

		r.ui.Rule()
	}

	return result, errs.ErrorOrNil()
}

type runner struct {
	all       bool
	fetcher   Fetcher
	publisher Publisher
	ui        *ui.Writer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func newRunner(opts *Opts) *runner {
	w := opts.UI
	if w == nil {
		w = ui.NewWriterWithOutputs(io.Discard, io.Discard, true)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &runner{
		all:       opts.All,
		fetcher:   opts.Fetcher,
		publisher: opts.Publisher,
		ui:        w,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// process loads and publishes one descriptor. It reports whether the
// descriptor was skipped because it is disabled.
func (r *runner) process(ctx context.Context, e descriptor.Entry, result *Result) (bool, error) {
	d, err := descriptor.Load(e.Path, e.Kind)
	if err != nil {
		return false, err
	}

	if !d.Enabled() {
		r.ui.Infof("%s is disabled. Skipping", d.Name())
		return true, nil
	}

	if e.Kind == descriptor.KindPlatform {
		return false, r.platform(ctx, d, result)
	}

	return false, r.extension(ctx, d, result)
}

func (r *runner) count(result *Result, outcomes ...registry.Outcome) {
	for _, o := range outcomes {
		switch o {
		case registry.OutcomeAlreadyExists:
			result.AlreadyPresent++
		case registry.OutcomeDryRun:
			result.Simulated++
		default:
			result.Published++
		}
	}
}

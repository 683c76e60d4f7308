// Package updates checks every descriptor of a catalog working directory for
// newly released upstream versions, rewrites the descriptors whose version
// list changed and commits each rewrite to git.
package updates

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/quarkusio/jbang-catalog/internal/descriptor"
	"github.com/quarkusio/jbang-catalog/internal/maven"
	"github.com/quarkusio/jbang-catalog/internal/metrics"
	"github.com/quarkusio/jbang-catalog/internal/resolver"
	"github.com/quarkusio/jbang-catalog/internal/ui"
)

// Status is the outcome of checking one descriptor.
type Status string

const (
	// StatusUpToDate means the version list is unchanged.
	StatusUpToDate Status = "up-to-date"
	// StatusUpdated means the version list changed and was rewritten.
	StatusUpdated Status = "updated"
	// StatusWouldUpdate is StatusUpdated in dry-run mode.
	StatusWouldUpdate Status = "would-update"
	// StatusNoMetadata means upstream metadata was missing or unreadable.
	StatusNoMetadata Status = "no-metadata"
	// StatusDisabled means the descriptor is disabled.
	StatusDisabled Status = "disabled"
	// StatusFailed means the check errored.
	StatusFailed Status = "failed"
)

// Resolver computes version updates for a descriptor.
type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) (*resolver.Result, error)
}

// Opts configures the check-updates run.
type Opts struct {
	// WorkDir holds the platforms/ and extensions/ directories.
	WorkDir string
	// NoCommit rewrites descriptors without committing them.
	NoCommit bool
	// DryRun prints the rewrite as a diff and writes nothing.
	DryRun   bool
	Resolver Resolver
	// Credentials authenticate metadata reads for descriptors with a server-id.
	Credentials *maven.Credentials
	UI          *ui.Writer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Report holds the outcome for one descriptor.
type Report struct {
	Path   string
	Kind   descriptor.Kind
	Status Status
	// New lists the versions added to the descriptor.
	New []string
	// Removed lists versions dropped from the descriptor, e.g. newly excluded
	// ones or older releases of a major.minor line.
	Removed []string
	// Commit is the commit message used, empty when nothing was committed.
	Commit string
}

// Result holds the outcome of a check-updates run.
type Result struct {
	Reports []Report
	// Updated counts descriptors rewritten (or that would be, in dry-run mode).
	Updated int
	Failed  int
}

// RunUpdate checks every descriptor under opts.WorkDir. Descriptor failures
// are aggregated into the returned error; the run continues past them.
func RunUpdate(ctx context.Context, opts *Opts) (*Result, error) {
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("working directory is required")
	}

	if opts.Resolver == nil {
		return nil, fmt.Errorf("check-updates requires a resolver")
	}

	workDir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory %s: %w", opts.WorkDir, err)
	}

	committing := !opts.NoCommit && !opts.DryRun
	if committing && !isGitRepo(ctx, workDir) {
		return nil, fmt.Errorf("check-updates requires a git repository at %s (use --no-commit to skip committing)", workDir)
	}

	entries, err := descriptor.Discover(workDir)
	if err != nil {
		return nil, fmt.Errorf("discovering descriptors: %w", err)
	}

	c := newChecker(opts, workDir, committing)
	result := &Result{Reports: make([]Report, 0, len(entries))}

	var errs *multierror.Error

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}

		c.ui.Section("Processing %s %s", e.Kind, e.Path)

		report, err := c.check(ctx, e)
		if err != nil {
			c.logger.Error("error while checking descriptor", "kind", e.Kind, "path", e.Path, "err", err)
			c.ui.Errorf("%s: %v", e.Path, err)

			report.Status = StatusFailed
			result.Failed++
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", e.Path, err))
		}

		if report.Status == StatusUpdated || report.Status == StatusWouldUpdate {
			result.Updated++
		}

		c.metrics.Descriptor(string(e.Kind), string(report.Status))
		result.Reports = append(result.Reports, report)

		c.ui.Rule()
	}

	return result, errs.ErrorOrNil()
}

type checker struct {
	workDir    string
	committing bool
	dryRun     bool
	resolver   Resolver
	creds      *maven.Credentials
	ui         *ui.Writer
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func newChecker(opts *Opts, workDir string, committing bool) *checker {
	w := opts.UI
	if w == nil {
		w = ui.NewWriterWithOutputs(io.Discard, io.Discard, true)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &checker{
		workDir:    workDir,
		committing: committing,
		dryRun:     opts.DryRun,
		resolver:   opts.Resolver,
		creds:      opts.Credentials,
		ui:         w,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

func (c *checker) check(ctx context.Context, e descriptor.Entry) (Report, error) {
	report := Report{Path: e.Path, Kind: e.Kind}

	before, err := os.ReadFile(filepath.Clean(e.Path))
	if err != nil {
		return report, fmt.Errorf("reading descriptor: %w", err)
	}

	d, err := descriptor.Parse(before, e.Kind)
	if err != nil {
		return report, err
	}

	d.Path = e.Path

	if !d.Enabled() {
		c.ui.Infof("%s is disabled. Skipping", d.Name())
		report.Status = StatusDisabled

		return report, nil
	}

	c.ui.Infof("Fetching latest version for %s:%s", d.GroupID(), d.ArtifactID())

	req := resolver.FromDescriptor(d)
	if id := d.ServerID(); id != "" {
		auth, ok := c.creds.BasicAuth(id)
		if !ok {
			c.logger.Warn("no usable credentials for server id; reading metadata without authentication", "server_id", id)
		}

		req.Authorization = auth
	}

	res, err := c.resolver.Resolve(ctx, req)
	if err != nil {
		return report, err
	}

	report.New = res.New
	report.Removed = removedVersions(d.VersionValues(), res.Versions)

	if !versionsChanged(d.VersionValues(), res.Versions) {
		c.ui.Info("No new versions found")

		report.Status = StatusUpToDate
		if res.NoMetadata {
			report.Status = StatusNoMetadata
		}

		return report, nil
	}

	if len(res.New) > 0 {
		c.ui.Infof("New versions found: %s", FormatVersions(res.New))
		c.metrics.AddNewVersions(string(e.Kind), len(res.New))
	}

	if len(report.Removed) > 0 {
		c.ui.Infof("Versions dropped: %s", FormatVersions(report.Removed))
	}

	d.SetVersions(res.Versions)

	if c.dryRun {
		after, err := d.Marshal()
		if err != nil {
			return report, err
		}

		c.ui.Diff(e.Path, string(before), string(after))
		report.Status = StatusWouldUpdate

		return report, nil
	}

	if err := d.Save(); err != nil {
		return report, err
	}

	report.Status = StatusUpdated

	if c.committing {
		msg := commitMessage(res.New, report.Removed, e.Path)
		if err := gitCommit(ctx, c.workDir, e.Path, msg); err != nil {
			return report, err
		}

		report.Commit = msg
		c.ui.Successf("Committed %s", msg)
	}

	return report, nil
}

// FormatVersions renders versions as a bracketed comma-separated list.
func FormatVersions(versions []string) string {
	return "[" + strings.Join(versions, ", ") + "]"
}

// CommitMessage is the message used when committing a descriptor that gained
// versions.
func CommitMessage(newVersions []string, path string) string {
	return "Add " + FormatVersions(newVersions) + " to " + filepath.Clean(path)
}

// RemovalMessage is the message used when a rewrite only dropped versions.
func RemovalMessage(removed []string, path string) string {
	return "Remove " + FormatVersions(removed) + " from " + filepath.Clean(path)
}

func commitMessage(added, removed []string, path string) string {
	switch {
	case len(added) > 0:
		return CommitMessage(added, path)
	case len(removed) > 0:
		return RemovalMessage(removed, path)
	default:
		return "Update versions in " + filepath.Clean(path)
	}
}

func versionsChanged(before []string, after []descriptor.VersionEntry) bool {
	return !slices.Equal(before, entryValues(after))
}

// removedVersions lists the entries of before missing from after, in order.
func removedVersions(before []string, after []descriptor.VersionEntry) []string {
	kept := entryValues(after)

	var removed []string
	for _, v := range before {
		if !slices.Contains(kept, v) && !slices.Contains(removed, v) {
			removed = append(removed, v)
		}
	}

	return removed
}

func entryValues(entries []descriptor.VersionEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}

	return out
}

// Package fetcher reads published platform catalogs and extension descriptors
// from an ordered list of Maven repositories, falling back to the next
// repository when one does not serve the artifact.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pingcap/errors"

	"github.com/quarkusio/jbang-catalog/internal/getter"
	"github.com/quarkusio/jbang-catalog/internal/maven"
	"github.com/quarkusio/jbang-catalog/internal/metrics"
)

// ExtensionDescriptorPath is the location of the extension descriptor inside
// an extension artifact.
const ExtensionDescriptorPath = "META-INF/quarkus-extension.yaml"

// Artifact kinds, used for cache keys and metrics labels.
const (
	artifactCatalog   = "catalog"
	artifactExtension = "extension"
)

// Fetch outcomes recorded in metrics.
const (
	outcomeOK      = "ok"
	outcomeCached  = "cached"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// ErrNotFound reports that a single repository location does not hold the
// artifact. Use errors.Cause to detect it.
var ErrNotFound = errors.New("artifact not found")

const (
	defaultCacheTTL        = 30 * time.Minute
	defaultMaxArtifactSize = 64 << 20
	// errorBodyPreview bounds how much of a failed response is logged.
	errorBodyPreview = 512
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher.
type Options struct {
	// Client performs repository GETs. Required for http(s) repositories.
	Client *http.Client
	// Credentials resolves server ids to Basic auth; may be nil.
	Credentials *maven.Credentials
	// CacheTTL bounds how long fetched bytes are reused within a run.
	CacheTTL time.Duration
	// TempDir holds downloaded archives; empty means os.TempDir().
	TempDir string
	// MaxArtifactSize bounds a catalog body or descriptor entry; zero means
	// 64 MiB. Larger artifacts are an error, never truncated.
	MaxArtifactSize int64
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
}

// Fetcher retrieves artifacts from repositories.
type Fetcher struct {
	client  HTTPDoer
	getter  *getter.Getter
	creds   *maven.Credentials
	cache   *gocache.Cache
	tempDir string
	maxSize int64
	metrics *metrics.Metrics
	logger  *slog.Logger

	warnedMu sync.Mutex
	warned   map[string]bool
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	maxSize := opts.MaxArtifactSize
	if maxSize <= 0 {
		maxSize = defaultMaxArtifactSize
	}

	return &Fetcher{
		client:  client,
		getter:  getter.New(client, logger),
		creds:   opts.Credentials,
		cache:   gocache.New(ttl, 2*ttl),
		tempDir: opts.TempDir,
		maxSize: maxSize,
		metrics: opts.Metrics,
		logger:  logger,
		warned:  make(map[string]bool),
	}
}

// Request identifies what to fetch and where from.
type Request struct {
	// Repositories are tried in order.
	Repositories []string
	// Coordinate names the artifact; its Classifier selects the catalog file.
	Coordinate maven.Coordinate
	// ServerID keys the credential store.
	ServerID string
}

// Catalog returns the JSON catalog published at
// {repo}/{group}/{artifact}/{version}/{artifact}[-{classifier}]-{version}.json,
// with the classifier placed before the version.
// Repositories answering with a non-2xx status are skipped. A file://
// repository missing the catalog fails the fetch immediately.
func (f *Fetcher) Catalog(ctx context.Context, req Request) ([]byte, error) {
	path := req.Coordinate.ArtifactPath("json")
	key := cacheKey(artifactCatalog, req.Repositories, path)

	if data, ok := f.cache.Get(key); ok {
		f.metrics.Fetch(artifactCatalog, outcomeCached)
		f.logger.Debug("catalog cache hit", "path", path)

		return data.([]byte), nil //nolint:forcetypeassert // only []byte is stored
	}

	auth := f.authorization(req.ServerID)
	tried := make([]string, 0, len(repositories(req.Repositories)))

	for _, repo := range repositories(req.Repositories) {
		u := maven.ResolveURL(repo, path)
		tried = append(tried, u)

		if getter.IsFileURL(u) {
			data, err := f.readLocal(u)
			if err != nil {
				f.metrics.Fetch(artifactCatalog, outcomeFailed)
				return nil, errors.Wrapf(err, "can't read the extension catalog, URIs tried: %v", tried)
			}

			f.metrics.Fetch(artifactCatalog, outcomeOK)
			f.cache.SetDefault(key, data)

			return data, nil
		}

		data, err := f.get(ctx, u, auth)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.AddStack(ctx.Err())
			}

			f.metrics.Fetch(artifactCatalog, outcomeSkipped)
			f.logger.Info("can't get the extension catalog", "url", u, "err", err)

			continue
		}

		f.metrics.Fetch(artifactCatalog, outcomeOK)
		f.cache.SetDefault(key, data)

		return data, nil
	}

	f.metrics.Fetch(artifactCatalog, outcomeFailed)

	return nil, errors.Errorf("can't read the extension catalog, URIs tried: %v", tried)
}

// Extension downloads the extension artifact (.jar) and returns the
// descriptor it carries at ExtensionDescriptorPath.
func (f *Fetcher) Extension(ctx context.Context, req Request) ([]byte, error) {
	coord := req.Coordinate.WithClassifier("")
	path := coord.ArtifactPath("jar")
	key := cacheKey(artifactExtension, req.Repositories, path)

	if data, ok := f.cache.Get(key); ok {
		f.metrics.Fetch(artifactExtension, outcomeCached)
		return data.([]byte), nil //nolint:forcetypeassert // only []byte is stored
	}

	header := http.Header{}
	if auth := f.authorization(req.ServerID); auth != "" {
		header.Set("Authorization", auth)
	}

	workDir, err := os.MkdirTemp(f.tempDir, "catalog-artifact-")
	if err != nil {
		return nil, errors.Wrap(err, "creating download directory")
	}
	defer os.RemoveAll(workDir) //nolint:errcheck // best-effort cleanup

	tried := make([]string, 0, len(repositories(req.Repositories)))

	for i, repo := range repositories(req.Repositories) {
		u := maven.ResolveURL(repo, path)
		tried = append(tried, u)

		dest := filepath.Join(workDir, fmt.Sprintf("%d-%s", i, filepath.Base(path)))
		if err := f.getter.FetchFile(ctx, u, dest, getter.FetchOpts{Header: header}); err != nil {
			if getter.IsFileURL(u) {
				f.metrics.Fetch(artifactExtension, outcomeFailed)
				return nil, errors.Wrapf(err, "can't read the extension, URIs tried: %v", tried)
			}

			if ctx.Err() != nil {
				return nil, errors.AddStack(ctx.Err())
			}

			f.metrics.Fetch(artifactExtension, outcomeSkipped)
			f.logger.Info("can't get the extension artifact", "url", u, "err", err)

			continue
		}

		data, err := readArchiveEntry(dest, ExtensionDescriptorPath, f.maxSize)
		if err != nil {
			f.metrics.Fetch(artifactExtension, outcomeFailed)
			return nil, errors.Wrapf(err, "reading %s from %s", ExtensionDescriptorPath, u)
		}

		f.metrics.Fetch(artifactExtension, outcomeOK)
		f.cache.SetDefault(key, data)

		return data, nil
	}

	f.metrics.Fetch(artifactExtension, outcomeFailed)

	return nil, errors.Errorf("can't read the extension, URIs tried: %v", tried)
}

// get performs one GET. Non-2xx statuses and HTML bodies are errors.
func (f *Fetcher) get(ctx context.Context, u, auth string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "creating request for %s", u)
	}

	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", u)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	data, err := readLimited(resp.Body, f.maxSize)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", u)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(ErrNotFound, "server responded %s", resp.Status)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("server responded %s: %s", resp.Status, preview(data))
	}

	if mt := mimetype.Detect(data); mt.Is("text/html") {
		return nil, errors.Errorf("server responded with %s instead of a catalog", mt.String())
	}

	return data, nil
}

// authorization resolves Basic auth for serverID. A server id without
// credentials is logged once and the fetch proceeds unauthenticated.
func (f *Fetcher) authorization(serverID string) string {
	if serverID == "" {
		return ""
	}

	if auth, ok := f.creds.BasicAuth(serverID); ok {
		return auth
	}

	f.warnedMu.Lock()
	defer f.warnedMu.Unlock()

	if !f.warned[serverID] {
		f.warned[serverID] = true
		f.logger.Warn("no usable credentials for server id; fetching without authentication", "server_id", serverID)
	}

	return ""
}

// readLimited reads r fully, failing when it holds more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.AddStack(err)
	}

	if int64(len(data)) > limit {
		return nil, errors.Errorf("artifact exceeds %d bytes", limit)
	}

	return data, nil
}

func (f *Fetcher) readLocal(u string) ([]byte, error) {
	p, err := getter.LocalPath(u)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Clean(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s does not exist", p)
		}

		return nil, errors.Wrapf(err, "reading %s", p)
	}
	defer file.Close() //nolint:errcheck // read-only file

	data, err := readLimited(file, f.maxSize)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", p)
	}

	return data, nil
}

func repositories(repos []string) []string {
	if len(repos) == 0 {
		return []string{maven.CentralRepository}
	}

	return repos
}

func cacheKey(kind string, repos []string, path string) string {
	return kind + "|" + strings.Join(repositories(repos), ",") + "|" + path
}

func preview(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > errorBodyPreview {
		s = s[:errorBodyPreview] + "..."
	}

	return s
}

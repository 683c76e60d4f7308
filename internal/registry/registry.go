// Package registry publishes extensions, platform catalogs, compatibility
// records and stream flags to the extension registry admin API.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/quarkusio/jbang-catalog/internal/maven"
	"github.com/quarkusio/jbang-catalog/internal/metrics"
)

// Admin API paths.
const (
	ExtensionPath     = "/admin/v1/extension"
	CatalogPath       = "/admin/v1/extension/catalog"
	CompatibilityPath = "/admin/v1/extension/compat"
	StreamPath        = "/admin/v1/stream/{platformKey}/{stream}"
)

// TokenHeader carries the admin token on every call.
const TokenHeader = "Token"

// Outcome describes how the registry answered a publish.
type Outcome string

// Publish outcomes.
const (
	OutcomePublished     Outcome = "published"
	OutcomeAlreadyExists Outcome = "already-exists"
	OutcomeDryRun        Outcome = "dry-run"
)

// PlatformType distinguishes a platform's own catalog from its members.
type PlatformType string

// Platform types sent in X-Platform-Type.
const (
	TypeCatalog PlatformType = "C"
	TypeMember  PlatformType = "M"
)

// Metric kinds.
const (
	kindExtension     = "extension"
	kindCatalog       = "catalog"
	kindMember        = "member"
	kindCompatibility = "compatibility"
	kindStream        = "stream"
)

// Options configures a Client.
type Options struct {
	// URL is the registry base URL. Required.
	URL string
	// Token is sent in the Token header when set.
	Token string
	// HTTPClient is the shared non-retrying API client.
	HTTPClient *http.Client
	// RateLimit caps admin calls per second; zero means unlimited.
	RateLimit float64
	// DryRun logs every call instead of sending it.
	DryRun  bool
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Client talks to the registry admin API.
type Client struct {
	rc      *resty.Client
	limiter *rate.Limiter
	dryRun  bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Client. It fails when the registry URL is missing or not an
// absolute http(s) URL.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("registry URL is required")
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing registry URL %q: %w", opts.URL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("registry URL %q must be an absolute http(s) URL", opts.URL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	rc := resty.NewWithClient(hc).
		SetBaseURL(u.Scheme + "://" + u.Host).
		SetLogger(restyLogger{logger: logger})

	if opts.Token != "" {
		rc.SetHeader(TokenHeader, opts.Token)
	}

	c := &Client{
		rc:      rc,
		dryRun:  opts.DryRun,
		metrics: opts.Metrics,
		logger:  logger,
	}

	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return c, nil
}

// DryRun reports whether calls are only logged.
func (c *Client) DryRun() bool {
	return c.dryRun
}

// PublishExtension posts a raw extension descriptor.
func (c *Client) PublishExtension(ctx context.Context, descriptor []byte) (Outcome, error) {
	if c.dryRun {
		c.logger.Info("dry run: would publish extension", "path", ExtensionPath, "bytes", len(descriptor))
		c.metrics.Publish(kindExtension, string(OutcomeDryRun))

		return OutcomeDryRun, nil
	}

	req, err := c.request(ctx)
	if err != nil {
		return "", err
	}

	resp, err := req.
		SetHeader("Content-Type", "application/yaml").
		SetBody(descriptor).
		Post(ExtensionPath)
	if err != nil {
		c.metrics.Publish(kindExtension, "error")
		return "", fmt.Errorf("publishing extension: %w", err)
	}

	outcome, err := c.outcome(kindExtension, resp, true)
	if err != nil {
		return "", fmt.Errorf("publishing extension: %w", err)
	}

	if outcome == OutcomePublished {
		c.logger.Info("extension published")
	}

	return outcome, nil
}

// CatalogRequest describes one catalog publish.
type CatalogRequest struct {
	PlatformKey string
	Catalog     []byte
	Pinned      bool
	Type        PlatformType
	Coordinate  maven.Coordinate
}

// PublishCatalog posts a platform or member catalog. Coordinates travel in
// the X-* headers.
func (c *Client) PublishCatalog(ctx context.Context, cr CatalogRequest) (Outcome, error) {
	kind := kindCatalog
	if cr.Type == TypeMember {
		kind = kindMember
	}

	headers := map[string]string{
		"X-Platform":        cr.PlatformKey,
		"X-Platform-Pinned": strconv.FormatBool(cr.Pinned),
		"X-Platform-Type":   string(cr.Type),
		"X-Group-Id":        cr.Coordinate.GroupID,
		"X-Artifact-Id":     cr.Coordinate.ArtifactID,
		"X-Version":         cr.Coordinate.Version,
		"Content-Type":      "application/json",
	}

	if c.dryRun {
		c.logger.Info("dry run: would publish catalog",
			"path", CatalogPath,
			"platform", cr.PlatformKey,
			"type", cr.Type,
			"pinned", cr.Pinned,
			"coordinate", cr.Coordinate.Key()+":"+cr.Coordinate.Version,
		)
		c.metrics.Publish(kind, string(OutcomeDryRun))

		return OutcomeDryRun, nil
	}

	req, err := c.request(ctx)
	if err != nil {
		return "", err
	}

	resp, err := req.
		SetHeaders(headers).
		SetBody(cr.Catalog).
		Post(CatalogPath)
	if err != nil {
		c.metrics.Publish(kind, "error")
		return "", fmt.Errorf("publishing catalog %s: %w", cr.PlatformKey, err)
	}

	outcome, err := c.outcome(kind, resp, true)
	if err != nil {
		return "", fmt.Errorf("publishing catalog %s: %w", cr.PlatformKey, err)
	}

	if outcome == OutcomePublished {
		c.logger.Info("platform published", "platform", cr.PlatformKey, "type", cr.Type)
	}

	return outcome, nil
}

// PublishCompatibility marks an extension version compatible with each core
// version, one call per core version. The first failure stops the loop.
func (c *Client) PublishCompatibility(ctx context.Context, coord maven.Coordinate, coreVersions []string) error {
	for _, core := range coreVersions {
		form := map[string]string{
			"groupId":     coord.GroupID,
			"artifactId":  coord.ArtifactID,
			"version":     coord.Version,
			"quarkusCore": core,
			"compatible":  "true",
		}

		if c.dryRun {
			c.logger.Info("dry run: would mark extension compatible", "path", CompatibilityPath, "extension", coord.String(), "quarkus_core", core)
			c.metrics.Publish(kindCompatibility, string(OutcomeDryRun))

			continue
		}

		req, err := c.request(ctx)
		if err != nil {
			return err
		}

		resp, err := req.SetFormData(form).Post(CompatibilityPath)
		if err != nil {
			c.metrics.Publish(kindCompatibility, "error")
			return fmt.Errorf("publishing compatibility of %s with %s: %w", coord.Key(), core, err)
		}

		if _, err := c.outcome(kindCompatibility, resp, false); err != nil {
			return fmt.Errorf("publishing compatibility of %s with %s: %w", coord.Key(), core, err)
		}

		c.logger.Info("extension marked compatible",
			"extension", coord.Key()+":"+coord.Version,
			"quarkus_core", core,
		)
	}

	return nil
}

// StreamPatch carries the flags of one platform stream.
type StreamPatch struct {
	PlatformKey string
	Stream      string
	Pinned      bool
	Unlisted    bool
	LTS         bool
}

// PatchStream updates the pinned, unlisted and lts flags of a stream.
func (c *Client) PatchStream(ctx context.Context, sp StreamPatch) error {
	form := map[string]string{
		"pinned":   strconv.FormatBool(sp.Pinned),
		"unlisted": strconv.FormatBool(sp.Unlisted),
		"lts":      strconv.FormatBool(sp.LTS),
	}

	if c.dryRun {
		c.logger.Info("dry run: would patch stream",
			"platform", sp.PlatformKey,
			"stream", sp.Stream,
			"pinned", sp.Pinned,
			"unlisted", sp.Unlisted,
			"lts", sp.LTS,
		)
		c.metrics.Publish(kindStream, string(OutcomeDryRun))

		return nil
	}

	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.
		SetPathParams(map[string]string{"platformKey": sp.PlatformKey, "stream": sp.Stream}).
		SetFormData(form).
		Patch(StreamPath)
	if err != nil {
		c.metrics.Publish(kindStream, "error")
		return fmt.Errorf("patching stream %s of %s: %w", sp.Stream, sp.PlatformKey, err)
	}

	if _, err := c.outcome(kindStream, resp, false); err != nil {
		return fmt.Errorf("patching stream %s of %s: %w", sp.Stream, sp.PlatformKey, err)
	}

	c.logger.Info("stream patched", "platform", sp.PlatformKey, "stream", sp.Stream)

	return nil
}

// request waits for the rate limiter and returns a fresh request bound to ctx.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	return c.rc.R().SetContext(ctx), nil
}

// outcome maps a response to an Outcome. 409 is success when conflictOK.
func (c *Client) outcome(kind string, resp *resty.Response, conflictOK bool) (Outcome, error) {
	code := resp.StatusCode()

	switch {
	case conflictOK && code == http.StatusConflict:
		c.logger.Info("conflict, version already exists; ignoring")
		c.metrics.Publish(kind, string(OutcomeAlreadyExists))

		return OutcomeAlreadyExists, nil
	case code >= http.StatusMultipleChoices:
		c.metrics.Publish(kind, "error")
		c.logger.Debug("registry error body", "status", code, "body", resp.String())

		return "", fmt.Errorf("%d -> %s", code, http.StatusText(code))
	default:
		c.metrics.Publish(kind, string(OutcomePublished))
		return OutcomePublished, nil
	}
}

// restyLogger routes resty's printf-style logging into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

package getter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// ClientOpts configures the process-wide HTTP clients.
type ClientOpts struct {
	// Retries is the number of retries for repository reads on 5xx, 429 or
	// connection errors.
	Retries int
	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Timeout applies to each request; zero means no timeout.
	Timeout time.Duration
	// UserAgent is sent on every request when set.
	UserAgent string
	Logger    *slog.Logger
}

// Clients are the HTTP clients shared by the whole run. Both use the same
// pooled transport, so connections to a host are reused across components.
type Clients struct {
	// Fetch retries transient failures; used for repository reads.
	Fetch *http.Client
	// API never retries; used for registry writes.
	API *http.Client
}

// NewClients builds the shared clients.
func NewClients(opts ClientOpts) *Clients {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pooled := cleanhttp.DefaultPooledClient()
	pooled.Timeout = opts.Timeout

	if opts.UserAgent != "" {
		pooled.Transport = &userAgentTransport{base: pooled.Transport, userAgent: opts.UserAgent}
	}

	retry := retryablehttp.NewClient()
	retry.HTTPClient = pooled
	retry.RetryMax = max(opts.Retries, 0)
	retry.Logger = logger
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.RetryWaitMin > 0 {
		retry.RetryWaitMin = opts.RetryWaitMin
	}

	if opts.RetryWaitMax > 0 {
		retry.RetryWaitMax = opts.RetryWaitMax
	}

	return &Clients{
		Fetch: retry.StandardClient(),
		API:   &http.Client{Transport: pooled.Transport, Timeout: opts.Timeout},
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)

	return t.base.RoundTrip(clone)
}

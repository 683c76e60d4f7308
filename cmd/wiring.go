package cmd

import (
	"fmt"
	"log/slog"

	"github.com/quarkusio/jbang-catalog/internal/config"
	"github.com/quarkusio/jbang-catalog/internal/getter"
	"github.com/quarkusio/jbang-catalog/internal/maven"
	"github.com/quarkusio/jbang-catalog/internal/metrics"
	"github.com/quarkusio/jbang-catalog/internal/ui"
)

// runtime holds what every network-facing command shares: one pool of HTTP
// connections, the credential store and the run metrics.
type runtime struct {
	clients *getter.Clients
	creds   *maven.Credentials
	metrics *metrics.Metrics
	ui      *ui.Writer
	logger  *slog.Logger
}

func newRuntime(s *config.Settings) (*runtime, error) {
	logger := slog.Default()

	creds, err := maven.LoadCredentials(s.MavenSettings)
	if err != nil {
		return nil, fmt.Errorf("loading Maven settings: %w", err)
	}

	logger.Debug("loaded Maven credentials", "path", s.MavenSettings, "servers", creds.Len())

	return &runtime{
		clients: getter.NewClients(getter.ClientOpts{
			Retries:   s.Retries,
			Timeout:   s.Timeout,
			UserAgent: "catalog/" + buildVersion,
			Logger:    logger,
		}),
		creds:   creds,
		metrics: metrics.New(),
		ui:      ui.NewWriter(s.NoColor),
		logger:  logger,
	}, nil
}

// finish writes the metrics file when one was requested.
func (r *runtime) finish(s *config.Settings) {
	if s.MetricsFile == "" {
		return
	}

	if err := r.metrics.WriteTextfile(s.MetricsFile); err != nil {
		r.logger.Warn("could not write metrics", "err", err)
		return
	}

	r.logger.Debug("metrics written", "path", s.MetricsFile)
}

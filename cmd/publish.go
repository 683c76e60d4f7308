package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quarkusio/jbang-catalog/internal/config"
	"github.com/quarkusio/jbang-catalog/internal/fetcher"
	"github.com/quarkusio/jbang-catalog/internal/registry"
	catalogsync "github.com/quarkusio/jbang-catalog/internal/sync"
	"github.com/quarkusio/jbang-catalog/internal/ui"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish platforms and extensions to the registry",
	Long: `Publish every enabled descriptor under platforms/ and extensions/ to the
extension registry. For each platform the newest listed version and the newest
pinned version are published along with the platform members, and the first
stream is patched; --all publishes every version and stream.

Versions already present in the registry are reported and skipped. A failing
descriptor does not stop the run, but makes the command exit non-zero.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringP(config.KeyWorkDir, "w", "", "the working directory")
	publishCmd.Flags().StringP(config.KeyRegistryURL, "u", "", "the extension registry URL (env REGISTRY_URL)")
	publishCmd.Flags().StringP(config.KeyToken, "t", "", "the token for the admin endpoint (env REGISTRY_TOKEN)")
	publishCmd.Flags().BoolP(config.KeyAll, "a", false, "publish all versions instead of just the latest")
	publishCmd.Flags().Bool(config.KeyDryRun, false, "fetch everything but only log the registry calls")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	s := settings
	if err := s.RequireWorkDir(); err != nil {
		return err
	}

	if err := s.RequireRegistry(); err != nil {
		return err
	}

	rt, err := newRuntime(s)
	if err != nil {
		return err
	}
	defer rt.finish(s)

	client, err := registry.New(registry.Options{
		URL:        s.RegistryURL,
		Token:      s.Token,
		HTTPClient: rt.clients.API,
		RateLimit:  s.RateLimit,
		DryRun:     s.DryRun,
		Metrics:    rt.metrics,
		Logger:     rt.logger,
	})
	if err != nil {
		return err
	}

	f := fetcher.New(fetcher.Options{
		Client:      rt.clients.Fetch,
		Credentials: rt.creds,
		Metrics:     rt.metrics,
		Logger:      rt.logger,
	})

	result, err := catalogsync.Run(cmd.Context(), &catalogsync.Opts{
		WorkDir:   s.WorkDir,
		All:       s.All,
		Fetcher:   f,
		Publisher: client,
		UI:        rt.ui,
		Metrics:   rt.metrics,
		Logger:    rt.logger,
	})
	if result == nil {
		return err
	}

	title, sent := "Publish summary", ""
	if s.DryRun {
		title, sent = "Publish summary (dry run)", " (not sent)"
	}

	rt.ui.Summary(title, []ui.SummaryRow{
		{Label: "descriptors", Count: result.Descriptors},
		{Label: "skipped", Count: result.Skipped},
		{Label: "failed", Count: len(result.Failed), Bad: true},
		{Label: "published", Count: result.Published},
		{Label: "already present", Count: result.AlreadyPresent},
		{Label: "simulated", Count: result.Simulated},
		{Label: "compatibility records" + sent, Count: result.Compatibility},
		{Label: "streams patched" + sent, Count: result.Streams},
	})

	if err != nil {
		rt.logger.Debug("publish failures", "err", err)
		return descriptorErrors(len(result.Failed))
	}

	return nil
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quarkusio/jbang-catalog/internal/config"
	"github.com/quarkusio/jbang-catalog/internal/resolver"
	"github.com/quarkusio/jbang-catalog/internal/ui"
	"github.com/quarkusio/jbang-catalog/internal/updates"
)

var checkUpdatesCmd = &cobra.Command{
	Use:   "check-updates",
	Short: "Record newly released versions in the descriptors",
	Long: `Read maven-metadata.xml for every enabled descriptor, keep the newest
version of each major.minor line, drop versions matching exclude-versions and
rewrite the descriptors whose version list changed. Each rewritten descriptor is
committed to git unless --no-commit is given. Extensions only announce final
versions (no Alpha, Beta or CR).

Use --dry-run to print the rewrite as a diff without touching any file.`,
	Args: cobra.NoArgs,
	RunE: runCheckUpdates,
}

func init() {
	checkUpdatesCmd.Flags().StringP(config.KeyWorkDir, "w", "", "the working directory")
	checkUpdatesCmd.Flags().BoolP(config.KeyNoCommit, "n", false, "do not commit changes")
	checkUpdatesCmd.Flags().Bool(config.KeyDryRun, false, "print the changes as a diff without writing")
	rootCmd.AddCommand(checkUpdatesCmd)
}

func runCheckUpdates(cmd *cobra.Command, _ []string) error {
	s := settings
	if err := s.RequireWorkDir(); err != nil {
		return err
	}

	rt, err := newRuntime(s)
	if err != nil {
		return err
	}
	defer rt.finish(s)

	result, err := updates.RunUpdate(cmd.Context(), &updates.Opts{
		WorkDir:     s.WorkDir,
		NoCommit:    s.NoCommit,
		DryRun:      s.DryRun,
		Resolver:    resolver.New(rt.clients.Fetch, rt.logger),
		Credentials: rt.creds,
		UI:          rt.ui,
		Metrics:     rt.metrics,
		Logger:      rt.logger,
	})
	if result == nil {
		return err
	}

	for _, r := range result.Reports {
		switch r.Status {
		case updates.StatusUpdated, updates.StatusWouldUpdate:
			rt.ui.Successf("%-50s %s +%s -%s", r.Path, r.Status, updates.FormatVersions(r.New), updates.FormatVersions(r.Removed))
		case updates.StatusFailed, updates.StatusNoMetadata:
			rt.ui.Warningf("%-50s %s", r.Path, r.Status)
		default:
			rt.ui.Infof("%-50s %s", r.Path, r.Status)
		}
	}

	rt.ui.Summary("Check summary", []ui.SummaryRow{
		{Label: "descriptors", Count: len(result.Reports)},
		{Label: "updated", Count: result.Updated},
		{Label: "failed", Count: result.Failed, Bad: true},
	})

	if err != nil {
		rt.logger.Debug("check-updates failures", "err", err)
		return descriptorErrors(result.Failed)
	}

	return nil
}

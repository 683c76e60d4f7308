// Package cmd defines the CLI commands for catalog.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/quarkusio/jbang-catalog/internal/config"
	"github.com/quarkusio/jbang-catalog/internal/ui"
)

var (
	// settings is loaded for the running command in PersistentPreRunE.
	settings *config.Settings
	runID    string
)

// rootCmd is the base command for the catalog CLI.
var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Keep the extension catalog in sync with Maven and the registry",
	Long: `Catalog maintains the platform and extension descriptors of the extension
catalog. check-updates discovers newly released versions from Maven repository
metadata and records them in the descriptors; publish pushes the described
catalogs, extensions, compatibility records and stream flags to the registry.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		s, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}

		settings = s
		runID = uuid.New().String()

		initLogger(s)

		if s.ConfigFile != "" {
			slog.Debug("using config file", "path", s.ConfigFile)
		}

		return nil
	},
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		noColor := settings != nil && settings.NoColor
		ui.NewWriter(noColor).Error(err.Error())
	}

	return err
}

func init() {
	config.AddPersistentFlags(rootCmd.PersistentFlags())
}

func initLogger(s *config.Settings) {
	level := slog.LevelInfo
	if s.Verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if s.NoColor || os.Getenv("NO_COLOR") != "" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: "15:04:05"})
	}

	slog.SetDefault(slog.New(handler).With("run", runID))
}

// descriptorErrors is returned when some descriptors failed; the details
// have already been printed per descriptor.
func descriptorErrors(n int) error {
	return fmt.Errorf("%d descriptor(s) failed", n)
}

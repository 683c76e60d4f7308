package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarkusio/jbang-catalog/internal/config"
	"github.com/quarkusio/jbang-catalog/internal/descriptor"
	"github.com/quarkusio/jbang-catalog/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate descriptors against the descriptor schema",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringP(config.KeyWorkDir, "w", "", "the working directory")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	s := settings
	if err := s.RequireWorkDir(); err != nil {
		return err
	}

	w := ui.NewWriter(s.NoColor)

	entries, err := descriptor.Discover(s.WorkDir)
	if err != nil {
		return err
	}

	invalid := 0

	for _, e := range entries {
		res, err := descriptor.ValidateFile(e.Path)
		if err != nil {
			w.Errorf("%s: %v", e.Path, err)
			invalid++

			continue
		}

		if res.Valid {
			w.Successf("%s", e.Path)
			continue
		}

		invalid++

		for _, issue := range res.Issues {
			w.Errorf("%s: %s", e.Path, issue)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d descriptor(s) are invalid", invalid, len(entries))
	}

	w.Successf("%d descriptor(s) valid", len(entries))

	return nil
}

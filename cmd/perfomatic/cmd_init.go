package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"perfomatic/internal/config"
)

var initFlags struct {
	path  string
	urls  []string
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter perfomatic.yaml",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initFlags.path, "path", "perfomatic.yaml", "Where to write the descriptor")
	f.StringSliceVar(&initFlags.urls, "url", []string{"http://localhost:3000"}, "URL to audit (repeatable)")
	f.BoolVar(&initFlags.force, "force", false, "Overwrite an existing file")
}

// starterDescriptor is the budget init writes: the overall bar plus the
// core web vitals and one binary audit.
func starterDescriptor(urls []string) config.Descriptor {
	overall := 90.0
	return config.Descriptor{
		URLs:    urls,
		Overall: &overall,
		Budget: config.RawBudget{
			{Key: "first-contentful-paint", Value: 90},
			{Key: "largest-contentful-paint", Value: 75},
			{Key: "cumulative-layout-shift", Value: 90},
			{Key: "server-response-time", Value: true},
		},
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(initFlags.path); err == nil && !initFlags.force {
		return usageError(fmt.Errorf("%s already exists (use --force to overwrite)", initFlags.path))
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	data, err := yaml.Marshal(starterDescriptor(initFlags.urls))
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	if err := os.WriteFile(initFlags.path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", initFlags.path)
	return nil
}

// perfomatic audits web pages and fails the run when they exceed a
// performance budget.
//
// Usage:
//
//	perfomatic [run] [--config=<path>] [--url=<url>...] [--json=<path>]
//	perfomatic init [--url=<url>...] [--path=<path>]
//	perfomatic metrics <url> [--engine=chrome|lighthouse]
//	perfomatic metrics --catalog
//	perfomatic history [--db=<path>] [--url=<url> | --run=<id>]
//	perfomatic serve [--history=<path>]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"perfomatic/internal/audit"
	"perfomatic/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// newInvoker builds the audit engine; tests swap it for a fake.
var newInvoker = audit.ForEngine

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "perfomatic",
	Short: "Performance budgets for web pages",
	Long: "Perfomatic audits each configured URL with a headless browser (or the\n" +
		"Lighthouse CLI) and checks the overall performance score and named\n" +
		"metrics against the budget in perfomatic.yaml or package.json.\n\n" +
		"The exit code is the number of failed checks (capped at 125), 2 for\n" +
		"configuration errors.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return usageError(err)
		}
		logging.Init(level, rootFlags.logFormat, cmd.ErrOrStderr())
		return nil
	},
	RunE: runRun,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format: text or json")

	addRunFlags(rootCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to a process exit code.
func execute(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(rootCmd.ErrOrStderr(), "perfomatic:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), "perfomatic:", err)
	return 1
}

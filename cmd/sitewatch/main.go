// Package main is the entry point for the sitewatch CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/sitewatch/internal/config"
	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/pkg/app"

	_ "github.com/flemzord/sitewatch/internal/gateway"
	_ "github.com/flemzord/sitewatch/modules/channel/discord"
	_ "github.com/flemzord/sitewatch/modules/channel/telegram"
	_ "github.com/flemzord/sitewatch/modules/fetcher/feed"
	_ "github.com/flemzord/sitewatch/modules/fetcher/html"
	_ "github.com/flemzord/sitewatch/modules/store/sqlite"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sitewatch",
		Short:         "Watch web pages and feeds for new links and notify chat channels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("data-dir", "", "Override the data directory")
	root.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")

	root.AddCommand(versionCmd(), startCmd(), runOnceCmd(), jobsCmd(), configCmd(), serviceCmd())
	return root
}

// runParams builds app.RunParams from the persistent flags.
func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	level, _ := cmd.Flags().GetString("log-level")
	return app.RunParams{
		ConfigPath: cfgPath,
		Version:    version,
		Commit:     commit,
		Date:       date,
		DataDir:    dataDir,
		LogLevel:   level,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sitewatch %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range mods {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start sitewatch with all configured modules and the scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(runParams(cmd))
		},
	}
}

func runOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run every active job once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum, err := app.RunOnce(cmd.Context(), runParams(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ran %d jobs, %d failed, in %s\n", sum.Ran, sum.Failed, sum.Duration)
			if sum.Failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", sum.Failed, sum.Ran)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and provision every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig(cmd.OutOrStdout(), args[0])
		},
	})
	return cmd
}

// checkConfig validates the file at path, then provisions every module
// against a throwaway data directory so that module-level settings are
// checked too.
func checkConfig(out io.Writer, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	dataDir, err := os.MkdirTemp("", "sitewatch-check-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dataDir) }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	a := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := a.LoadModules(ids); err != nil {
		return err
	}
	defer a.Stop()

	fmt.Fprintf(out, "Configuration OK (%d modules, %d seed jobs)\n", len(ids), len(cfg.Jobs))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

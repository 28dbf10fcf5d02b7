/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/autocommit"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/config"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// loaded is the configuration resolved by PreRunE for the root command.
var loaded *config.Config

// RootCmd is the base command for autocommit.
var RootCmd = &cobra.Command{
	Use:   "autocommit <repository-path>",
	Short: "Split working tree changes into per-subsystem commits with generated messages",
	Long: `autocommit groups the changes in a git working tree into DTS, CONFIG,
DRIVERS, SCRIPT and OTHER categories, asks a language model for a
[cpu][machine][type] title message for each, lets you fill in anything
the model could not determine, and commits each category separately
after you confirm it. It offers a single push at the end.

Requires OPENAI_API_KEY and OPENAI_ENDPOINT (a .env file is read if present).

"rules", "config" and "version" are subcommands. A repository directory
with one of those names must be given as a path, for example ./config.`,
	Example: `  autocommit .
  autocommit --dry-run ~/src/linux-imx
  autocommit --tui --remote origin --branch lf-6.6.y ~/src/linux-imx
  autocommit ./config`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		loaded = cfg
		return nil
	},
	RunE: eos_cli.Wrap(runAutocommit),
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default $XDG_CONFIG_HOME/autocommit/config.yaml)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Also write JSON logs to this file")

	f := RootCmd.Flags()
	f.Bool("dry-run", false, "Print proposals without committing or pushing")
	f.Bool("tui", false, "Pick unresolved fields from an interactive list")
	f.String("remote", "", "Remote to push to (default: the branch's upstream)")
	f.String("branch", "", "Branch to push (requires --remote)")
	f.String("model", "", "Model name sent with each request")
	f.String("fallback", "", "When generation fails: manual or abort")

	RootCmd.AddCommand(rulesCmd, showConfigCmd, versionCmd)
}

// loadConfig resolves configuration and reconfigures logging and tracing
// from it. Credentials are read here and nowhere else.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	// a bad log file is reported by Initialize and is not fatal
	_ = logger.Initialize(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err := telemetry.Init("autocommit", cfg.Telemetry.File); err != nil {
		logger.L().Warn("Telemetry disabled", zap.Error(err))
	}
	logger.L().Debug("Configuration loaded",
		zap.String("source", cfg.Source),
		zap.String("endpoint", cfg.LLM.Endpoint),
		zap.Bool("dry_run", cfg.DryRun))
	return cfg, nil
}

func runAutocommit(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)
	cfg := loaded
	if cfg == nil {
		return eos_err.NewInternalError("configuration was not loaded", nil)
	}

	// prompts go to stderr so stdout holds only the transcript
	colour := cfg.UI.Color && interaction.IsTerminal(os.Stderr)
	prompter := interaction.NewPrompter(os.Stdin, os.Stderr, colour)

	var resolver interaction.FieldResolver = interaction.LineResolver{P: prompter}
	if cfg.UI.TUI {
		if interaction.IsTerminal(os.Stdin) {
			resolver = interaction.PickerResolver{In: os.Stdin, Out: os.Stderr}
		} else {
			logger.Warn("--tui needs a terminal on stdin; using line prompts")
		}
	}

	summary, err := autocommit.Run(rc, autocommit.Options{
		Path:      args[0],
		Config:    cfg,
		Resolver:  resolver,
		Confirmer: prompter,
		Out:       cmd.OutOrStdout(),
	})
	if summary != nil {
		rc.Attributes["commits"] = fmt.Sprint(summary.Commits())
		rc.Attributes["pushed"] = fmt.Sprint(summary.Pushed)
	}
	return err
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
		}
	}()

	err := RootCmd.ExecuteContext(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := telemetry.Shutdown(ctx); serr != nil {
		logger.L().Warn("Failed to flush telemetry", zap.Error(serr))
	}

	if err == nil {
		return 0
	}
	logger.L().Error("autocommit failed",
		zap.String("category", eos_err.CategoryOf(err).String()),
		zap.Error(err),
		zap.String("detail", fmt.Sprintf("%+v", err)))
	fmt.Fprintf(os.Stderr, "Error: %s\n", eos_err.Describe(err))
	return eos_err.GetExitCode(err)
}

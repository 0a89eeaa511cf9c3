package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rosettalab/xlate/internal/engine"
	"github.com/rosettalab/xlate/internal/output"
	"github.com/rosettalab/xlate/internal/store"
	"github.com/rosettalab/xlate/internal/translate"
	"github.com/rosettalab/xlate/internal/verify"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui     *output.UI
	logger *zap.Logger

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "xlate",
	Short: "Interactive code translation sessions with per-step verification",
	Long: `xlate translates source code between languages one step at a time.
Each step is verified before it is committed, and sessions can pause for
feedback, roll back steps, and resume. The engine is exposed over MCP
so coding agents can drive translations interactively.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/xlate/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "xlate")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("XLATE")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "xlate")

	viper.SetDefault("host", "127.0.0.1")
	viper.SetDefault("port", 8080)
	viper.SetDefault("translator.mode", "rule")
	viper.SetDefault("verifier.path", "")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("session.ttl", "30m")
	viper.SetDefault("session.sweep_interval", "5m")
	viper.SetDefault("step.timeout", "60s")
	viper.SetDefault("verify.advisory_fatal", true)
	viper.SetDefault("bench.db_path", filepath.Join(defaultConfigDir, "bench.db"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	logger = newLogger()
}

// newLogger builds the stderr logger. Stdout is reserved for command output
// and, in mcp mode, the stdio transport.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// buildEngine assembles the session engine from the effective configuration.
func buildEngine(cmd *cobra.Command) (*engine.Engine, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mem := store.NewMemoryStore()
	mem.StartSweeper(ctx,
		viper.GetDuration("session.sweep_interval"),
		viper.GetDuration("session.ttl"))

	var translator translate.Translator
	switch mode := viper.GetString("translator.mode"); mode {
	case "rule":
		translator = translate.NewRuleTranslator()
	case "anthropic":
		translator = translate.NewAnthropicTranslator(
			viper.GetString("anthropic.api_key"),
			viper.GetString("anthropic.model"))
	default:
		return nil, fmt.Errorf("unknown translator.mode: %q (must be rule or anthropic)", mode)
	}

	var verifier verify.Verifier
	if path := viper.GetString("verifier.path"); path != "" {
		verifier = verify.NewToolVerifier(path)
	} else {
		verifier = verify.NewHeuristicVerifier()
	}

	cfg := engine.Config{
		StepTimeout:   viper.GetDuration("step.timeout"),
		AdvisoryFatal: viper.GetBool("verify.advisory_fatal"),
	}
	return engine.New(mem, translator, verifier, logger, cfg), nil
}

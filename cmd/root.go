package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/planreview/internal/assemble"
	"github.com/joescharf/planreview/internal/output"
	"github.com/joescharf/planreview/internal/review"
	"github.com/joescharf/planreview/internal/reviewer"
	"github.com/joescharf/planreview/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "planreview",
	Short: "Multi-model plan review gate",
	Long: `planreview sends implementation plans to multiple LLM reviewers in
parallel, reduces their verdicts into a single consensus decision, and can
act as a PreToolUse permission hook gating plan approval.`,
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
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/planreview/config.yaml)")
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

		configDir := filepath.Join(home, ".config", "planreview")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PLANREVIEW")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "planreview")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "planreview.db"))
	viper.SetDefault("proxy", "")
	viper.SetDefault("claude.api_key", "")
	viper.SetDefault("claude.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-3.1-pro-preview")
	viper.SetDefault("qwen.api_key", "")
	viper.SetDefault("qwen.model", "qwen3.5-plus")
	viper.SetDefault("review.timeout_seconds", 120)
	viper.SetDefault("review.notes_root", "docs/plans")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// The store is initialized lazily, only when commands actually need
	// it. This lets config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getRunner assembles the review pipeline from configuration. History
// persistence is best-effort: a store failure degrades to an in-memory run.
func getRunner() (*review.Runner, error) {
	cfg := reviewer.DefaultConfig()
	revs, err := reviewer.FromViper(cfg)
	if err != nil {
		return nil, err
	}

	s, err := getStore()
	if err != nil {
		ui.VerboseLog("history store unavailable: %v", err)
		s = nil
	}

	asm := assemble.New(viper.GetString("review.notes_root"))
	return review.NewRunner(asm, revs, s, cfg), nil
}

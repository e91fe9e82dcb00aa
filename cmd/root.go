package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/output"
	"github.com/joescharf/intentcfg/internal/store"
)

// Set from main via Execute.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// envPrefix prefixes every environment override, e.g. INTENTCFG_SERVE_PORT.
const envPrefix = "INTENTCFG"

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	logger    *zap.Logger

	verbose  bool
	jsonOut  bool
	actorArg string
)

var rootCmd = &cobra.Command{
	Use:   "intentcfg",
	Short: "Manage intent routing configuration, suggestions, and test classification",
	Long: `intentcfg manages versioned intent-routing configuration for a
message classifier: patterns and templates grouped into candidate, active,
and archived versions, a review workflow for improvement suggestions with
tracked action items, and a harness for test-classifying messages against
any version.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)

	err := rootCmd.Execute()
	closeDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVar(&actorArg, "actor", "", "Identity recorded on writes (default: config 'actor' or $USER)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/intentcfg/config.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if dir, err := configDirFunc(); err == nil {
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key with its default.
func setDefaults() {
	dir, err := configDirFunc()
	if err != nil {
		dir = "."
	}
	viper.SetDefault("state_dir", dir)
	viper.SetDefault("db_path", filepath.Join(dir, "intentcfg.db"))
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("classifier.threshold", 0.7)
	viper.SetDefault("classifier.rate_per_sec", 2.0)
	viper.SetDefault("classifier.fallback_handler", "general")
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("actor", "")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.JSON = jsonOut

	// Store and logger are opened lazily so config commands run without a db.
}

func closeDeps() {
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// actor resolves the audit identity: --actor, then config, then $USER.
func actor() string {
	if actorArg != "" {
		return actorArg
	}
	if a := viper.GetString("actor"); a != "" {
		return a
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

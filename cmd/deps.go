package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/actions"
	"github.com/joescharf/intentcfg/internal/configver"
	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/llm"
	"github.com/joescharf/intentcfg/internal/logging"
	"github.com/joescharf/intentcfg/internal/router"
	"github.com/joescharf/intentcfg/internal/store"
	"github.com/joescharf/intentcfg/internal/suggestions"
)

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getLogger returns the shared logger built from the log.* config keys.
func getLogger() *zap.Logger {
	if logger != nil {
		return logger
	}
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	l, err := logging.New(logging.Config{Level: level, Format: viper.GetString("log.format")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; logging disabled\n", err)
		l = zap.NewNop()
	}
	logger = l
	return logger
}

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"), viper.GetFloat64("classifier.rate_per_sec"))
}

// services bundles the core services every front end calls into.
type services struct {
	versions *configver.Service
	commands *suggestions.Dispatcher
	harness  *harness.Harness
}

func (s *services) workflow() *suggestions.Workflow { return s.commands.Workflow() }
func (s *services) tracker() *actions.Tracker       { return s.commands.Tracker() }

// getServices opens the store and wires the services. The LLM client, when
// configured, serves as both the phrase suggester and the fallback classifier.
func getServices() (*services, error) {
	st, err := getStore()
	if err != nil {
		return nil, err
	}
	log := getLogger()

	opts := []configver.Option{configver.WithLogger(log)}
	hcfg := harness.Config{
		Threshold:       viper.GetFloat64("classifier.threshold"),
		FallbackHandler: viper.GetString("classifier.fallback_handler"),
		Logger:          log,
	}
	if client := newLLMClient(); client != nil {
		opts = append(opts, configver.WithSuggester(client))
		hcfg.Classifier = client
	}

	versions := configver.NewService(st, opts...)
	hcfg.Versions = versions
	hcfg.Router = router.New(versions)

	tracker := actions.NewTracker(st, log)
	return &services{
		versions: versions,
		commands: suggestions.NewDispatcher(suggestions.NewWorkflow(st, tracker, log), tracker),
		harness:  harness.New(hcfg),
	}, nil
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "intentcfg"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage intentcfg configuration.

Running bare 'intentcfg config' is the same as 'intentcfg config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration for invalid values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configValidateRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# intentcfg configuration
# See: intentcfg config show (for effective values and sources)

# State/data directory (default: ~/.config/intentcfg)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/intentcfg/intentcfg.db)
# db_path: {{ .DBPath }}

# Identity recorded on suggestions, reviews, and action items (default: $USER)
actor: "{{ .Actor }}"

log:
  # debug, info, warn, error
  level: "{{ .LogLevel }}"
  # console or json
  format: "{{ .LogFormat }}"

# Anthropic model used for phrase expansion and the fallback classifier.
# Without an API key only the deterministic compiler and the router run.
anthropic:
  # api_key: sk-ant-...  (or set ANTHROPIC_API_KEY)
  model: "{{ .AnthropicModel }}"

classifier:
  # Minimum classifier confidence to accept its answer
  threshold: {{ .Threshold }}
  # Maximum classifier requests per second
  rate_per_sec: {{ .RatePerSec }}
  # Handler used when neither router nor classifier decides
  fallback_handler: "{{ .FallbackHandler }}"

serve:
  port: {{ .Port }}
`

type configTemplateData struct {
	StateDir        string
	DBPath          string
	Actor           string
	LogLevel        string
	LogFormat       string
	AnthropicModel  string
	Threshold       float64
	RatePerSec      float64
	FallbackHandler string
	Port            int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:        viper.GetString("state_dir"),
		DBPath:          viper.GetString("db_path"),
		Actor:           viper.GetString("actor"),
		LogLevel:        viper.GetString("log.level"),
		LogFormat:       viper.GetString("log.format"),
		AnthropicModel:  viper.GetString("anthropic.model"),
		Threshold:       viper.GetFloat64("classifier.threshold"),
		RatePerSec:      viper.GetFloat64("classifier.rate_per_sec"),
		FallbackHandler: viper.GetString("classifier.fallback_handler"),
		Port:            viper.GetInt("serve.port"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKey is one documented setting.
type configKey struct {
	Key    string
	Secret bool
}

var configKeys = []configKey{
	{Key: "state_dir"},
	{Key: "db_path"},
	{Key: "actor"},
	{Key: "log.level"},
	{Key: "log.format"},
	{Key: "anthropic.api_key", Secret: true},
	{Key: "anthropic.model"},
	{Key: "classifier.threshold"},
	{Key: "classifier.rate_per_sec"},
	{Key: "classifier.fallback_handler"},
	{Key: "serve.port"},
}

// envVar is the environment variable viper binds to key.
func (k configKey) envVar() string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(k.Key, ".", "_"))
}

// configEntry is an effective setting and where it came from.
type configEntry struct {
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source string `json:"source"`
}

func effectiveConfig(cfgPath string) []configEntry {
	inFile := configFileKeys(cfgPath)
	entries := make([]configEntry, 0, len(configKeys))
	for _, k := range configKeys {
		e := configEntry{Key: k.Key, Value: viper.Get(k.Key), Source: "default"}
		if k.Secret {
			e.Value = maskSecret(viper.GetString(k.Key))
		}
		if _, ok := os.LookupEnv(k.envVar()); ok {
			e.Source = "env:" + k.envVar()
		} else if inFile[k.Key] {
			e.Source = "file"
		}
		entries = append(entries, e)
	}
	return entries
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	entries := effectiveConfig(cfgPath)
	if ui.JSON {
		return ui.PrintJSON(entries)
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)
	for _, e := range entries {
		fmt.Fprintf(ui.Out, "  %-30s %v  (%s)\n", e.Key, e.Value, e.Source)
	}
	return nil
}

// configFileKeys returns the dotted keys set in the YAML file at path.
func configFileKeys(path string) map[string]bool {
	keys := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return keys
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return keys
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if nested, ok := v.(map[string]any); ok {
				walk(k, nested)
				continue
			}
			keys[k] = true
		}
	}
	walk("", doc)
	return keys
}

// validateConfig reports settings the server or classifier would reject at runtime.
func validateConfig() []string {
	var problems []string
	if t := viper.GetFloat64("classifier.threshold"); t <= 0 || t > 1 {
		problems = append(problems, fmt.Sprintf("classifier.threshold must be in (0, 1], got %v", t))
	}
	if r := viper.GetFloat64("classifier.rate_per_sec"); r <= 0 {
		problems = append(problems, fmt.Sprintf("classifier.rate_per_sec must be positive, got %v", r))
	}
	if p := viper.GetInt("serve.port"); p <= 0 || p > 65535 {
		problems = append(problems, fmt.Sprintf("serve.port must be 1-65535, got %d", p))
	}
	if _, err := zapcore.ParseLevel(viper.GetString("log.level")); err != nil {
		problems = append(problems, fmt.Sprintf("log.level: %v", err))
	}
	if f := viper.GetString("log.format"); f != "console" && f != "json" {
		problems = append(problems, fmt.Sprintf("log.format must be console or json, got %q", f))
	}
	if viper.GetString("db_path") == "" {
		problems = append(problems, "db_path is empty")
	}
	return problems
}

func configValidateRun() error {
	problems := validateConfig()
	if ui.JSON {
		if problems == nil {
			problems = []string{}
		}
		if err := ui.PrintJSON(map[string][]string{"problems": problems}); err != nil {
			return err
		}
	} else {
		for _, p := range problems {
			ui.Error("%s", p)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d configuration problem(s)", len(problems))
	}
	if !ui.JSON {
		ui.Success("Configuration is valid")
	}
	if viper.GetString("anthropic.api_key") == "" {
		ui.Warning("No Anthropic API key: phrase compilation is deterministic and the classifier is disabled")
	}
	return nil
}

// maskSecret keeps only the last four characters of a secret.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'intentcfg config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}

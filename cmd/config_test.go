package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/intentcfg/internal/output"
)

// testEnv sets up isolated config dir, viper, store, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	// Keep the classifier offline.
	t.Setenv("ANTHROPIC_API_KEY", "")

	viper.Reset()
	setDefaults()
	viper.Set("log.level", "error")

	closeDeps()
	logger = nil
	t.Cleanup(func() {
		closeDeps()
		logger = nil
	})

	actorArg = "tester"
	jsonOut = false

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	ui = &output.UI{Out: out, ErrOut: errOut}

	return dir
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "intentcfg configuration")
	assert.Contains(t, string(data), "classifier")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "intentcfg configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	require.NoError(t, configShowRun())
	assert.Contains(t, ui.Out.(*bytes.Buffer).String(), "Config file: (none)")
}

func TestConfigShow_JSON(t *testing.T) {
	testEnv(t)
	require.NoError(t, configInitRun())
	ui.Out.(*bytes.Buffer).Reset()
	ui.JSON = true

	require.NoError(t, configShowRun())
	var entries []configEntry
	require.NoError(t, json.Unmarshal(ui.Out.(*bytes.Buffer).Bytes(), &entries))
	assert.Len(t, entries, len(configKeys))
}

func TestEffectiveConfig_Sources(t *testing.T) {
	testEnv(t)
	require.NoError(t, configInitRun())
	t.Setenv("INTENTCFG_LOG_LEVEL", "debug")
	viper.Set("anthropic.api_key", "sk-ant-secret1234")

	cfgPath, err := configFilePath()
	require.NoError(t, err)
	sources := map[string]configEntry{}
	for _, e := range effectiveConfig(cfgPath) {
		sources[e.Key] = e
	}

	assert.Equal(t, "file", sources["serve.port"].Source)
	assert.Equal(t, "default", sources["db_path"].Source, "db_path is commented out in the generated file")
	assert.Equal(t, "env:INTENTCFG_LOG_LEVEL", sources["log.level"].Source)
	assert.Equal(t, "****1234", sources["anthropic.api_key"].Value)
}

func TestConfigKeyEnvVar(t *testing.T) {
	assert.Equal(t, "INTENTCFG_CLASSIFIER_RATE_PER_SEC", configKey{Key: "classifier.rate_per_sec"}.envVar())
	assert.Equal(t, "INTENTCFG_DB_PATH", configKey{Key: "db_path"}.envVar())
}

func TestConfigFileKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actor: ana\nclassifier:\n  threshold: 0.5\n"), 0o644))

	keys := configFileKeys(path)
	assert.True(t, keys["actor"])
	assert.True(t, keys["classifier.threshold"])
	assert.False(t, keys["classifier"])

	assert.Empty(t, configFileKeys(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestConfigValidate(t *testing.T) {
	testEnv(t)
	assert.Empty(t, validateConfig())
	require.NoError(t, configValidateRun())

	viper.Set("classifier.threshold", 1.5)
	viper.Set("serve.port", 0)
	viper.Set("log.format", "xml")
	problems := validateConfig()
	assert.Len(t, problems, 3)

	err := configValidateRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 configuration problem(s)")
	assert.Contains(t, ui.ErrOut.(*bytes.Buffer).String(), "classifier.threshold")
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	origEditor := os.Getenv("EDITOR")
	origVisual := os.Getenv("VISUAL")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")
	t.Cleanup(func() {
		if origEditor != "" {
			_ = os.Setenv("EDITOR", origEditor)
		}
		if origVisual != "" {
			_ = os.Setenv("VISUAL", origVisual)
		}
	})

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)

	_ = os.Setenv("EDITOR", "echo") // harmless command
	t.Cleanup(func() { _ = os.Unsetenv("EDITOR") })

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestConfigInit_GeneratesValidYAML(t *testing.T) {
	dir := testEnv(t)
	viper.Set("classifier.threshold", 0.55)

	require.NoError(t, configInitRun())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))

	classifier, ok := parsed["classifier"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.55, classifier["threshold"])
	assert.Equal(t, "general", classifier["fallback_handler"])

	serve, ok := parsed["serve"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 8080, serve["port"])
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "****wxyz", maskSecret("sk-ant-abcdwxyz"))
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "xlate"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Show the effective configuration as YAML, with the source of each
value (env, file, or default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "host", EnvVar: "XLATE_HOST"},
	{Key: "port", EnvVar: "XLATE_PORT"},
	{Key: "translator.mode", EnvVar: "XLATE_TRANSLATOR_MODE"},
	{Key: "verifier.path", EnvVar: "XLATE_VERIFIER_PATH"},
	{Key: "anthropic.api_key", EnvVar: "XLATE_ANTHROPIC_API_KEY"},
	{Key: "anthropic.model", EnvVar: "XLATE_ANTHROPIC_MODEL"},
	{Key: "session.ttl", EnvVar: "XLATE_SESSION_TTL"},
	{Key: "session.sweep_interval", EnvVar: "XLATE_SESSION_SWEEP_INTERVAL"},
	{Key: "step.timeout", EnvVar: "XLATE_STEP_TIMEOUT"},
	{Key: "verify.advisory_fatal", EnvVar: "XLATE_VERIFY_ADVISORY_FATAL"},
	{Key: "bench.db_path", EnvVar: "XLATE_BENCH_DB_PATH"},
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	doc := map[string]any{}
	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		// API keys never echo their value.
		if k.Key == "anthropic.api_key" && viper.GetString(k.Key) != "" {
			val = "(set)"
		}
		doc[k.Key] = fmt.Sprintf("%v  %s", val, source)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Fprint(ui.Out, string(out))
	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

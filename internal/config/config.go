package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PAIRPOOL"

// RunConfig holds configuration for the replay command.
type RunConfig struct {
	In              string
	Records         string
	Errors          string
	Snapshot        string
	SnapshotEnabled bool
	SnapshotName    string
	PGDSN           string
	BatchSize       int
	Workers         int
	MaxRetries      int
	RetryBackoff    time.Duration
	DefaultFeeRate  string
	TaxRates        []string
	TaxCollector    string
	LogLevel        string
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v := viper.New()
	v.SetDefault("records", "./data/records.jsonl")
	v.SetDefault("errors", "./data/errors.jsonl")
	v.SetDefault("snapshot", "./data/snapshot.json")
	v.SetDefault("snapshot-enabled", true)
	v.SetDefault("snapshot-name", "replay")
	v.SetDefault("batch-size", 500)
	v.SetDefault("workers", 4)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("default-fee-rate", "0.003")
	v.SetDefault("tax-collector", "tax_collector")
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return RunConfig{}, err
	}

	cfg := RunConfig{
		In:              v.GetString("in"),
		Records:         v.GetString("records"),
		Errors:          v.GetString("errors"),
		Snapshot:        v.GetString("snapshot"),
		SnapshotEnabled: v.GetBool("snapshot-enabled"),
		SnapshotName:    v.GetString("snapshot-name"),
		PGDSN:           v.GetString("pg-dsn"),
		BatchSize:       v.GetInt("batch-size"),
		Workers:         v.GetInt("workers"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		DefaultFeeRate:  v.GetString("default-fee-rate"),
		TaxRates:        getStringSlice(v, "tax-rates"),
		TaxCollector:    v.GetString("tax-collector"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// read binds env and flags, then loads the explicit config file or an
// optional ./config.yaml.
func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Snapshot     string
	SnapshotName string
	PGDSN        string
	Pool         string
	Asset        string
	Amount       string
	Reverse      bool
	TaxRates     []string
	TaxCollector string
	LogLevel     string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := viper.New()
	v.SetDefault("snapshot", "./data/snapshot.json")
	v.SetDefault("snapshot-name", "replay")
	v.SetDefault("tax-collector", "tax_collector")
	v.SetDefault("log-level", "warn")

	if err := read(v, cfgFile, flags); err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Snapshot:     v.GetString("snapshot"),
		SnapshotName: v.GetString("snapshot-name"),
		PGDSN:        v.GetString("pg-dsn"),
		Pool:         v.GetString("pool"),
		Asset:        v.GetString("asset"),
		Amount:       v.GetString("amount"),
		Reverse:      v.GetBool("reverse"),
		TaxRates:     getStringSlice(v, "tax-rates"),
		TaxCollector: v.GetString("tax-collector"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

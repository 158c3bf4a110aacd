package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. ${VAR} references in the file
// body are expanded from the environment before parsing, so secrets stay
// out of the file itself. The returned config has defaults applied and has
// passed Validate; anything Load returns is safe to run with.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Chain.EventSignature == "" {
		cfg.Chain.EventSignature = DefaultEventSignature
	}
	if cfg.Chain.ConfirmationDelay == nil {
		delay := uint64(DefaultConfirmationDelay)
		cfg.Chain.ConfirmationDelay = &delay
	}
	if cfg.Chain.BackfillWindow == 0 {
		cfg.Chain.BackfillWindow = DefaultBackfillWindow
	}
	if cfg.Scanner.PollInterval == 0 {
		cfg.Scanner.PollInterval = Duration(DefaultPollInterval)
	}
	if cfg.Scanner.MaxRangeSize == 0 {
		cfg.Scanner.MaxRangeSize = DefaultMaxRangeSize
	}
	if cfg.Attestation.RequestTimeout == 0 {
		cfg.Attestation.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if cfg.Attestation.Retry.InitialDelay == 0 {
		cfg.Attestation.Retry.InitialDelay = Duration(defaultRetryInitialDelay)
	}
	if cfg.Attestation.Retry.Multiplier == 0 {
		cfg.Attestation.Retry.Multiplier = defaultRetryMultiplier
	}
	if cfg.Attestation.Retry.MaxAttempts == 0 {
		cfg.Attestation.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = DefaultHealthPort
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "innernode"
	}
}

func normalize(cfg *AppConfig) {
	cfg.Chain.ContractAddress = strings.ToLower(strings.TrimSpace(cfg.Chain.ContractAddress))
	cfg.Chain.EventSignature = strings.ReplaceAll(cfg.Chain.EventSignature, " ", "")
	cfg.Chain.RPCURL = strings.TrimSpace(cfg.Chain.RPCURL)
	cfg.Attestation.URL = strings.TrimSpace(cfg.Attestation.URL)
}

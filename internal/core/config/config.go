package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/segura08m/InnerNode/internal/events"
	"github.com/segura08m/InnerNode/internal/infra/storage/postgres"
	redisstore "github.com/segura08m/InnerNode/internal/infra/storage/redisstore"
)

const (
	DefaultEventSignature = "BridgeTransferInitiated(address,address,uint256,address,uint256,uint256)"

	DefaultConfirmationDelay = 6
	DefaultBackfillWindow    = 10
	DefaultPollInterval      = 15 * time.Second
	DefaultMaxRangeSize      = 2000
	DefaultRequestTimeout    = 10 * time.Second
	DefaultHealthPort        = 8080

	defaultRetryInitialDelay = time.Second
	defaultRetryMultiplier   = 2.0
	defaultRetryMaxAttempts  = 5
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Chain       ChainConfig       `yaml:"chain"`
	Scanner     ScannerConfig     `yaml:"scanner"`
	Attestation AttestationConfig `yaml:"attestation"`
	Database    postgres.Config   `yaml:"database"`
	Redis       redisstore.Config `yaml:"redis"`
	NATS        events.Config     `yaml:"nats"`
	Retention   RetentionConfig   `yaml:"retention"`
	Health      HealthConfig      `yaml:"health"`
	Log         LogConfig         `yaml:"log"`
}

// ChainConfig holds settings for the watched source chain.
type ChainConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	ChainID         uint64 `yaml:"chain_id"`
	ContractAddress string `yaml:"contract_address"`
	EventSignature  string `yaml:"event_signature"`
	// ConfirmationDelay is the number of blocks behind head considered
	// final. nil means the default; an explicit 0 trusts head immediately.
	ConfirmationDelay *uint64 `yaml:"confirmation_delay"`
	// StartHeight is the first block to scan on a fresh deployment.
	// 0 derives the start from the current safe head minus BackfillWindow.
	StartHeight    uint64 `yaml:"start_height"`
	BackfillWindow uint64 `yaml:"backfill_window"`
}

// Confirmations returns the effective confirmation delay.
func (c ChainConfig) Confirmations() uint64 {
	if c.ConfirmationDelay == nil {
		return DefaultConfirmationDelay
	}
	return *c.ConfirmationDelay
}

// ScannerConfig holds scan loop settings.
type ScannerConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
	MaxRangeSize uint64   `yaml:"max_range_size"`
	// MaxConsecutiveLedgerFailures terminates the process once the ledger
	// has been unreachable for this many consecutive ticks. 0 disables the
	// threshold: the watcher rides out arbitrarily long outages.
	MaxConsecutiveLedgerFailures int `yaml:"max_consecutive_ledger_failures"`
}

// AttestationConfig holds destination API settings.
type AttestationConfig struct {
	URL            string      `yaml:"url"`
	APIKey         string      `yaml:"api_key"`
	RequestTimeout Duration    `yaml:"request_timeout"`
	Retry          RetryConfig `yaml:"retry"`
}

// RetryConfig bounds the in-place retry loop for transient delivery
// failures.
type RetryConfig struct {
	InitialDelay Duration `yaml:"initial_delay"`
	Multiplier   float64  `yaml:"multiplier"`
	MaxAttempts  int      `yaml:"max_attempts"`
}

// RetentionConfig bounds stored forensic data. Zero keeps everything.
type RetentionConfig struct {
	DeadLetters Duration `yaml:"dead_letters"`
}

// HealthConfig holds the health/metrics listener settings. The listener is
// on by default; set disabled to turn it off.
type HealthConfig struct {
	Disabled bool `yaml:"disabled"`
	Port     int  `yaml:"port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Duration unmarshals either a Go duration string ("15s", "2m") or a bare
// integer number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if v, err := time.ParseDuration(raw); err == nil {
		*d = Duration(v)
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration %q", raw)
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

var (
	addressPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	signaturePattern = regexp.MustCompile(`^\w+\([a-z0-9,\[\]]*\)$`)
)

// Validate checks the configuration before anything touches the network.
// Any error here is fatal: the process must exit rather than start a
// watcher that cannot do its job.
func (c *AppConfig) Validate() error {
	if err := validateURL(c.Chain.RPCURL); err != nil {
		return fmt.Errorf("chain.rpc_url: %w", err)
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain.chain_id: must be positive")
	}
	if !addressPattern.MatchString(c.Chain.ContractAddress) {
		return fmt.Errorf("chain.contract_address: %q is not a 0x-prefixed 20-byte address", c.Chain.ContractAddress)
	}
	if !signaturePattern.MatchString(c.Chain.EventSignature) {
		return fmt.Errorf("chain.event_signature: %q is not an event signature", c.Chain.EventSignature)
	}
	if c.Scanner.PollInterval.Std() <= 0 {
		return fmt.Errorf("scanner.poll_interval: must be positive")
	}
	if c.Scanner.MaxRangeSize < 1 {
		return fmt.Errorf("scanner.max_range_size: must be at least 1")
	}
	if c.Scanner.MaxConsecutiveLedgerFailures < 0 {
		return fmt.Errorf("scanner.max_consecutive_ledger_failures: must be >= 0")
	}
	if err := validateURL(c.Attestation.URL); err != nil {
		return fmt.Errorf("attestation.url: %w", err)
	}
	if strings.TrimSpace(c.Attestation.APIKey) == "" {
		return fmt.Errorf("attestation.api_key: must not be empty")
	}
	if c.Attestation.RequestTimeout.Std() <= 0 {
		return fmt.Errorf("attestation.request_timeout: must be positive")
	}
	if c.Attestation.Retry.InitialDelay.Std() <= 0 {
		return fmt.Errorf("attestation.retry.initial_delay: must be positive")
	}
	if c.Attestation.Retry.Multiplier < 1 {
		return fmt.Errorf("attestation.retry.multiplier: must be >= 1")
	}
	if c.Attestation.Retry.MaxAttempts < 1 {
		return fmt.Errorf("attestation.retry.max_attempts: must be at least 1")
	}
	if c.Retention.DeadLetters.Std() < 0 {
		return fmt.Errorf("retention.dead_letters: must not be negative")
	}
	if !c.Health.Disabled && (c.Health.Port < 1 || c.Health.Port > 65535) {
		return fmt.Errorf("health.port: %d out of range", c.Health.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// config.go - Configuration management for the e-cash simulator
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"digicash/internal/ecash"
)

// Config represents the application configuration
type Config struct {
	// Protocol settings
	RISLength         int    `json:"ris_length"`
	KeyBits           int    `json:"key_bits"`
	Hash              string `json:"hash"`
	BankTag           string `json:"bank_tag"`
	MinEvidenceLength int    `json:"min_evidence_length"`

	// Simulation
	NumMerchants   int    `json:"num_merchants"`
	MaxConcurrency int    `json:"max_concurrency"`
	Seed           string `json:"seed"` // hex; empty uses crypto/rand

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Audit
	EnableAudit  bool   `json:"enable_audit"`
	AuditLogPath string `json:"audit_log_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RISLength:         ecash.DefaultRISLength,
		KeyBits:           ecash.DefaultKeyBits,
		Hash:              ecash.HashSHA256,
		BankTag:           ecash.DefaultBankTag,
		MinEvidenceLength: ecash.DefaultMinEvidenceLength,
		NumMerchants:      2,
		MaxConcurrency:    4,
		LogLevel:          "info",
		EnableAudit:       true,
		AuditLogPath:      "audit.log",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		config := DefaultConfig()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return config, nil
	}

	// Create default config and save it
	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.KeyBits < 1024 {
		return fmt.Errorf("key_bits must be at least 1024")
	}
	params, err := c.Params()
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("ris_length or bank_tag: %w", err)
	}
	if c.MinEvidenceLength < 0 {
		return fmt.Errorf("min_evidence_length must not be negative")
	}
	if c.NumMerchants <= 0 {
		return fmt.Errorf("num_merchants must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if _, err := hex.DecodeString(c.Seed); err != nil {
		return fmt.Errorf("seed must be hex: %w", err)
	}
	if c.EnableAudit && c.AuditLogPath == "" {
		return fmt.Errorf("audit_log_path is required when enable_audit is set")
	}
	return nil
}

// Params builds the protocol parameters
func (c *Config) Params() (*ecash.Params, error) {
	h, err := ecash.HasherByName(c.Hash)
	if err != nil {
		return nil, err
	}
	return &ecash.Params{RISLength: c.RISLength, BankTag: c.BankTag, Hash: h}, nil
}

// Source returns the randomness source of one party. Seeded runs give every
// party its own stream keyed by seed and name, so draws do not depend on the
// order in which concurrent parties read.
func (c *Config) Source(party string) (ecash.Source, error) {
	if c.Seed == "" {
		return ecash.SystemSource(), nil
	}
	seed, err := hex.DecodeString(c.Seed)
	if err != nil {
		return nil, fmt.Errorf("seed must be hex: %w", err)
	}
	return ecash.NewSeededSource(append(seed, []byte("/"+party)...))
}

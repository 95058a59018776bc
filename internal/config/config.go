package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config carries the runtime settings for the ledger service. Every field
// has a fallback so the service starts with an empty environment.
type Config struct {
	ServiceName    string
	Environment    string
	Port           string
	LogMode        string
	RedisAddr      string
	EventsEnabled  bool
	MetricsEnabled bool
	OTelEnabled    bool
	SeedFile       string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		ServiceName:    getEnv("SERVICE_NAME", "ledger-service"),
		Environment:    getEnv("ENVIRONMENT", "dev"),
		Port:           getEnv("PORT", "8080"),
		LogMode:        getEnv("LOG_MODE", "dev"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		EventsEnabled:  getEnvBool("EVENTS_ENABLED", true),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		OTelEnabled:    getEnvBool("OTEL_ENABLED", true),
		SeedFile:       getEnv("SEED_FILE", ""),
	}
}

// SeedAccount is one account row in a seed file. Balances are decimal
// strings so seed files never lose precision to float parsing.
type SeedAccount struct {
	AccountNumber string `yaml:"accountNumber"`
	SortCode      string `yaml:"sortCode"`
	Name          string `yaml:"name"`
	Contact       string `yaml:"contact"`
	Currency      string `yaml:"currency"`
	Balance       string `yaml:"balance"`
}

type seedFile struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// DefaultSeed returns the built-in demo book used when no seed file is set.
func DefaultSeed() []SeedAccount {
	return []SeedAccount{
		{AccountNumber: "01000001", SortCode: "10-10-10", Name: "Alice Johnson", Contact: "alice.johnson@example.com", Currency: "GBP", Balance: "5000"},
		{AccountNumber: "01000002", SortCode: "10-10-10", Name: "Bob Smith", Contact: "bob.smith@example.com", Currency: "GBP", Balance: "7500"},
		{AccountNumber: "01000003", SortCode: "10-10-10", Name: "Carol Diaz", Contact: "carol.diaz@example.com", Currency: "GBP", Balance: "100"},
	}
}

// LoadSeed reads the seed accounts from path. An empty path selects the
// built-in defaults.
func LoadSeed(path string) ([]SeedAccount, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("seed file %s lists no accounts", path)
	}
	return f.Accounts, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

/*
Package config loads server configuration from a YAML file.

PURPOSE:
  Holds everything the server needs at startup: HTTP port, database path,
  starting balances for new registrations, and optional seed accounts (the
  demo users created on an empty database). Command-line flags in
  cmd/server override file values.

EXAMPLE config.yaml:

  server:
    port: 8080
  database:
    path: ./data/paysecure.db
  accounts:
    starting_coins: 1000
    starting_cash: 1000
    seed:
      - name: User One
        email: user1@example.com
        password: "123456"
      - name: User Two
        email: user2@example.com
        password: "123456"
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Accounts AccountsConfig `yaml:"accounts"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AccountsConfig struct {
	StartingCoins float64       `yaml:"starting_coins"`
	StartingCash  float64       `yaml:"starting_cash"`
	Seed          []SeedAccount `yaml:"seed"`
}

// SeedAccount is created on first run against an empty database.
type SeedAccount struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Default returns the configuration used when no file is present: the two
// demo users, 1000 coins and 1000 cash each.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "paysecure.db"},
		Accounts: AccountsConfig{
			StartingCoins: 1000,
			StartingCash:  1000,
			Seed: []SeedAccount{
				{Name: "User One", Email: "user1@example.com", Password: "123456"},
				{Name: "User Two", Email: "user2@example.com", Password: "123456"},
			},
		},
	}
}

// Load reads the YAML file at path, filling unset fields from Default.
// A missing file is not an error: defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "paysecure.db"
	}
	if cfg.Accounts.StartingCoins < 0 || cfg.Accounts.StartingCash < 0 {
		return cfg, fmt.Errorf("config %s: starting balances must not be negative", path)
	}
	return cfg, nil
}

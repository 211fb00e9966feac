package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/replytrainer/internal/config"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required variables that are missing
	Present  map[string]string // Variables that are set (masked values)
	Warnings []string          // Non-fatal warnings
	Provider string
	Driver   string
}

const (
	apiKeyVar      = config.EnvPrefix + "AI__API_KEY"
	databaseURLVar = "DATABASE_URL"
)

// EnvCommand returns the env command
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Inspect environment configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Report which required variables are set",
				Action: func(c *cli.Context) error {
					cfg, err := config.LoadConfig(c.String("config"))
					if err != nil {
						return fmt.Errorf("failed to load config: %w", err)
					}
					result := CheckRequiredConfig(cfg)
					PrintConfigCheck(result)
					if len(result.Missing) > 0 {
						return fmt.Errorf("%d required variable(s) missing", len(result.Missing))
					}
					return nil
				},
			},
		},
	}
}

// CheckRequiredConfig reports the secrets the configured provider and store
// need. A value present in the config file counts as set.
func CheckRequiredConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
		Provider: cfg.AI.Provider,
		Driver:   cfg.Store.Driver,
	}

	check := func(name, configured string) {
		switch {
		case os.Getenv(name) != "":
			result.Present[name] = maskSecret(os.Getenv(name))
		case configured != "":
			result.Present[name] = maskSecret(configured) + " (config file)"
		default:
			result.Missing = append(result.Missing, name)
		}
	}

	if cfg.AI.Provider != "ollama" {
		check(apiKeyVar, cfg.AI.APIKey)
	}
	if cfg.Store.Driver == "postgres" {
		check(databaseURLVar, cfg.Store.DatabaseURL)
	} else if cfg.Jobs.Enabled {
		result.Warnings = append(result.Warnings, "jobs are enabled but the store driver is not postgres")
	}
	if cfg.Store.Driver == "memory" {
		result.Warnings = append(result.Warnings, "memory store keeps sessions only for the life of the process")
	}

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(result *ConfigCheckResult) {
	fmt.Println("=== Configuration Check ===")
	fmt.Printf("Provider: %s\n", result.Provider)
	fmt.Printf("Store: %s\n", result.Driver)
	fmt.Println("")

	if len(result.Missing) > 0 {
		fmt.Println("❌ Missing required variables:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		fmt.Println("✓ Configured variables:")
		for k, v := range result.Present {
			fmt.Printf("   - %s = %s\n", k, v)
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("⚠ Warning: %s\n", w)
	}

	if len(result.Missing) == 0 {
		fmt.Println("✓ All required configuration is present")
	}

	fmt.Println("============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}

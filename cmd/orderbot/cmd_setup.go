package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/orderbot/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Orderbot Setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Store.Name = ask(scanner, "Pizzeria name", cfg.Store.Name)
		cfg.Store.MenuURL = ask(scanner, "Menu URL (optional)", cfg.Store.MenuURL)
		if cfg.Store.MenuURL != "" && cfg.Store.MenuRefresh == "" {
			cfg.Store.MenuRefresh = "@every 1h"
		}

		cfg.LLM.BaseURL = ask(scanner, "LLM base URL", cfg.LLM.BaseURL)
		cfg.LLM.APIKey = ask(scanner, "LLM API key", cfg.LLM.APIKey)
		cfg.LLM.Model = ask(scanner, "LLM model name", cfg.LLM.Model)
		maxTokensStr := ask(scanner, "Max reply tokens", strconv.Itoa(cfg.LLM.MaxTokens))
		if n, err := strconv.Atoi(maxTokensStr); err == nil {
			cfg.LLM.MaxTokens = n
		}

		cfg.Storage.Backend = ask(scanner, "Storage backend (file, redis, memory)", cfg.Storage.Backend)
		if cfg.Storage.Backend == "redis" {
			cfg.Storage.RedisURL = ask(scanner, "Redis URL", cfg.Storage.RedisURL)
		}

		cfg.Telegram.Token = ask(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		bridge := ask(scanner, "Enable WhatsApp HTTP bridge? (y/n)", yesNo(cfg.HTTP.Enabled))
		cfg.HTTP.Enabled = strings.HasPrefix(strings.ToLower(bridge), "y")
		if cfg.HTTP.Enabled {
			cfg.HTTP.Listen = ask(scanner, "Listen address", cfg.HTTP.Listen)
			cfg.HTTP.OutboundURL = ask(scanner, "Bridge send URL", cfg.HTTP.OutboundURL)
			cfg.HTTP.Secret = ask(scanner, "Shared secret (optional)", cfg.HTTP.Secret)
		}

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// ask displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func ask(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

package cli

import (
	"fmt"
	"os"

	"github.com/MajordomoAI/majordomo/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ Majordomo Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 Majordomo Status")
		fmt.Printf("Version: %s\n", version)

		// Check config
		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:   ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:   ✗ Not found (defaults in effect)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Status:   ? Unable to load config: " + err.Error())
			return
		}

		// Check API key presence
		if cfg.Providers.OpenAI.APIKey != "" {
			fmt.Println("API Key:  ✓ Found (deep mode available)")
		} else {
			fmt.Println("API Key:  ✗ Not found (heuristic planning only)")
		}

		// Check database
		if _, err := os.Stat(cfg.Paths.DatabasePath); err == nil {
			fmt.Println("Database: ✓ Found (" + cfg.Paths.DatabasePath + ")")
		} else {
			fmt.Println("Database: ✗ Not found (created on first run)")
		}

		if cfg.Notify.Enabled {
			fmt.Println("Slack:    ✓ Enabled (" + cfg.Notify.SlackChannel + ")")
		} else {
			fmt.Println("Slack:    ✗ Disabled")
		}
		if cfg.Trace.MirrorEnabled {
			fmt.Println("Traces:   ✓ Mirrored to Kafka (" + cfg.Trace.Topic + ")")
		} else {
			fmt.Println("Traces:   ✓ Local only")
		}

		fmt.Println("Status:   Ready")
	},
}

// Package cli implements the majordomo command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/MajordomoAI/majordomo/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  __  __       _               _\n" +
		" |  \\/  | __ _ (_) ___  _ __ __| | ___  _ __ ___   ___\n" +
		" | |\\/| |/ _` || |/ _ \\| '__/ _` |/ _ \\| '_ ` _ \\ / _ \\\n" +
		" | |  | | (_| || | (_) | | | (_| | (_) | | | | | | (_) |\n" +
		" |_|  |_|\\__,_|/ |\\___/|_|  \\__,_|\\___/|_| |_| |_|\\___/\n" +
		"             |__/\n"
)

var rootCmd = &cobra.Command{
	Use:   "majordomo",
	Short: "Majordomo - Local-first personal assistant",
	Long:  color.CyanString(logo) + "\nA local-first personal assistant with human-approved side effects.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(approvalsCmd)
}

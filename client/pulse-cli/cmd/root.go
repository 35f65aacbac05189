package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	authToken  string
)

var rootCmd = &cobra.Command{
	Use:   "pulse-cli",
	Short: "A CLI client for the TechPulse aggregator",
	Long:  `A command-line interface for reading aggregated news and patents, triggering refresh sweeps and watching notifications.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", envOr("TECHPULSE_SERVER", "http://localhost:8080"), "aggregator base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("TECHPULSE_TOKEN"), "bearer token for protected endpoints")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

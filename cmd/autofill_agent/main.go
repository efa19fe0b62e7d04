// Package main provides the entry point for the autofill agent CLI and server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "autofill_agent",
	Short: "Autofill mapping and rendering engine",
	Long:  "Autofill agent fills broker document templates (tagged DOCX or PDF AcroForms) from structured customer records, with LLM-assisted field mapping and a deterministic fallback.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/digifynow/autofill-agent/internal/server"
)

var (
	serveAddr             string
	serveFileRoot         string
	serveInferenceTimeout int
	serveIncludeValues    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes broker authentication, template and customer management, and autofill run endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
	serveCmd.Flags().StringVar(&serveFileRoot, "file-root", "data/files", "Root directory of the local file store")
	serveCmd.Flags().IntVar(&serveInferenceTimeout, "inference-timeout", 0, "Inference call budget in seconds (0 uses the default)")
	serveCmd.Flags().BoolVar(&serveIncludeValues, "include-values", false, "Send customer values (not just keys) to the inference backend")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}

	// Inference is optional: without a key every run maps fallback-only
	apiKey := os.Getenv("GEMINI_API_KEY")

	cfg := server.Config{
		ListenAddr:       serveAddr,
		DatabaseURL:      databaseURL,
		FileRoot:         serveFileRoot,
		APIKey:           apiKey,
		InferenceTimeout: time.Duration(serveInferenceTimeout) * time.Second,
		IncludeValues:    serveIncludeValues,
	}

	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

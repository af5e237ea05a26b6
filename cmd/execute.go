// Package cmd contains the sibyl command line entry points.
//
// Following the pattern used by kubectl, hugo, and other standard Go CLI
// tools, all application logic is contained in the cmd package, leaving
// main.go as a minimal entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the sibyl CLI. It handles flag
// parsing, command routing, and initialization.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersionInfo()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			return runWithConfig(runServe)
		case "ingest":
			return runWithConfig(runIngest)
		default:
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	printHelp()
	return nil
}

// runWithConfig performs the shared initialization every real command
// needs: logger, configuration, and required environment.
func runWithConfig(run func(cfg *config.Config, logger *slog.Logger) error) error {
	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := checkRequiredEnv(); err != nil {
		return err
	}

	return run(cfg, logger)
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: os.Getenv("SIBYL_LOG_JSON") != ""})
}

// checkRequiredEnv verifies that all required environment variables are
// set and returns a user-friendly error with setup instructions.
func checkRequiredEnv() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Sibyl requires a Gemini API key for embeddings and completions.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "To set your API key:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Get your API key at: https://ai.google.dev/")

		return fmt.Errorf("GEMINI_API_KEY not set")
	}
	return nil
}

func printVersionInfo() {
	fmt.Printf("sibyl v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
}

func printHelp() {
	fmt.Println("Sibyl - retrieval-augmented chat over a knowledge graph")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sibyl serve              Start the HTTP API server")
	fmt.Println("  sibyl ingest <file>      Load a JSON seed file into the stores")
	fmt.Println("  sibyl version            Show version information")
	fmt.Println("  sibyl help               Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required: Gemini API key")
	fmt.Println("  DATABASE_URL       Optional: PostgreSQL URL (overrides postgres_* config)")
	fmt.Println("  NEO4J_URI          Optional: Neo4j bolt URI")
	fmt.Println("  NEO4J_PASSWORD     Optional: Neo4j password")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
	fmt.Println("  SIBYL_LOG_JSON     Optional: JSON log output")
	fmt.Println()
	fmt.Println("Configuration file: ~/.sibyl/config.yaml")
}

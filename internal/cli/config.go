package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/ui"
)

var configShowPath bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Display current configuration settings and config file locations.

Examples:
  # Show current configuration
  aura config

  # Show config file paths
  aura config --path`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "show config file paths")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configShowPath {
		fmt.Println(ui.SectionTitle.Render("Configuration Paths"))
		fmt.Println()
		fmt.Printf("Global config: %s\n", config.GlobalConfigPath())
		fmt.Printf("Local config:  .aurarc.yaml (searched from cwd upward)\n")
		fmt.Printf("Active config: %s\n", config.ConfigFilePath())
		fmt.Printf("Database:      %s\n", config.Get().Store.Path)
		return nil
	}

	cfg := config.Get()

	fmt.Println(ui.SectionTitle.Render("Current Configuration"))
	fmt.Println()

	fmt.Println(ui.Bold.Render("Embeddings:"))
	fmt.Printf("  Provider: %s\n", cfg.Embeddings.Provider)
	fmt.Printf("  Timeout: %s\n", cfg.Embeddings.Timeout)
	fmt.Printf("  Ollama URL: %s\n", cfg.Embeddings.Ollama.URL)
	fmt.Printf("  Ollama Model: %s\n", cfg.Embeddings.Ollama.Model)
	fmt.Printf("  OpenAI Model: %s\n", cfg.Embeddings.OpenAI.Model)
	if cfg.Embeddings.OpenAI.BaseURL != "" {
		fmt.Printf("  OpenAI Base URL: %s\n", cfg.Embeddings.OpenAI.BaseURL)
	}
	fmt.Println()

	fmt.Println(ui.Bold.Render("Store:"))
	fmt.Printf("  Backend: %s\n", cfg.Store.Backend)
	fmt.Printf("  Path: %s\n", cfg.Store.Path)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Chunking:"))
	fmt.Printf("  Chunk Size: %d\n", cfg.Chunking.ChunkSize)
	fmt.Printf("  Chunk Overlap: %d\n", cfg.Chunking.ChunkOverlap)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Retrieval:"))
	fmt.Printf("  Top K: %d\n", cfg.Retrieval.TopK)
	fmt.Printf("  Min Score: %.2f\n", cfg.Retrieval.MinScore)
	fmt.Printf("  Max Context Chars: %d\n", cfg.Retrieval.MaxContextChars)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Server:"))
	fmt.Printf("  Address: %s\n", cfg.Server.Addr)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Ingest:"))
	fmt.Printf("  Max File Size: %d bytes\n", cfg.Ingest.MaxFileSize)
	fmt.Printf("  Batch Size: %d\n", cfg.Ingest.BatchSize)
	fmt.Printf("  Ignore Patterns: %d configured\n", len(cfg.Ingest.Ignore))

	return nil
}

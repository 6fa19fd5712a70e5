package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base status and statistics",
	Long: `Display information about the knowledge base:
- Number of documents and chunks
- Embedding provider, model, and dimensions
- Store backend and location`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Println(ui.Header.Render("Knowledge Base Status"))
	fmt.Println()

	fmt.Printf("%s %d documents, %d chunks\n",
		ui.Dim.Render("Contents:"), stats.DocumentCount, stats.ChunkCount)
	if stats.Dimensions > 0 {
		fmt.Printf("%s %d\n", ui.Dim.Render("Dimensions:"), stats.Dimensions)
	}

	fmt.Println()
	fmt.Printf("%s %s (%s)\n",
		ui.Dim.Render("Embeddings:"),
		engine.Embedder().ModelName(),
		engine.Embedder().Provider(),
	)
	fmt.Printf("%s %s\n", ui.Dim.Render("Backend:"), cfg.Store.Backend)
	if cfg.Store.Backend == "sqlite" {
		fmt.Printf("%s %s\n", ui.Dim.Render("Database:"), cfg.Store.Path)
	}

	if stats.DocumentCount == 0 {
		fmt.Println()
		fmt.Println(ui.Warning.Render("Knowledge base is empty. Run 'aura ingest <path>' to add documents."))
	}

	return nil
}

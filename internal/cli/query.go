package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/knowledge"
	"github.com/aura-companion/aura/internal/store"
	"github.com/aura-companion/aura/internal/ui"
)

var (
	queryTopK     int
	queryMinScore float64
	queryShowCtx  bool
	queryJSON     bool
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve relevant knowledge for a question",
	Long: `Search the knowledge base using semantic similarity.

The query is embedded with the same model as the stored documents and the
closest chunks are returned, most similar first.

Examples:
  # Basic query
  aura query "when is my sister's birthday"

  # More results, lower score floor
  aura query "vacation plans" -k 10 --min-score 0.2

  # Show the assembled context block as a chat backend would receive it
  aura query "allergies" --context

  # Machine-readable output
  aura query "allergies" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of results (default from config)")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", -1, "minimum similarity score (0-1, default from config)")
	queryCmd.Flags().BoolVar(&queryShowCtx, "context", false, "print the assembled context block")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := args[0]
	cfg := config.Get()

	log.Debug("Running query", "query", query, "top_k", queryTopK)

	ctx, cancel := signalContext()
	defer cancel()

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	opts := knowledge.RetrieveOptions{TopK: queryTopK}
	if queryMinScore >= 0 {
		opts.MinScore = queryMinScore
	}
	opts = engine.Options(opts)

	results, err := engine.Search(ctx, query, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputJSON(results)
	}

	if len(results) == 0 {
		fmt.Println("No relevant knowledge found.")
		return nil
	}

	if queryShowCtx {
		return displayContext(knowledge.AssembleContext(results, opts.MaxContextChars))
	}

	displayResults(results)
	return nil
}

// displayResults formats and displays scored chunks.
func displayResults(results []store.Result) {
	fmt.Printf("Found %d results:\n\n", len(results))

	for i, r := range results {
		fmt.Printf("%s %s %s\n",
			ui.Highlight.Render(fmt.Sprintf("[%d]", i+1)),
			ui.DocName.Render(r.Document.Name),
			ui.FormatScore(r.Score),
		)
		fmt.Println(ui.ResultContent.Render(snippet(r.Chunk.Text, 300)))
		fmt.Println()
	}
}

// displayContext renders the assembled context block as Markdown.
func displayContext(context string) error {
	if context == "" {
		fmt.Println("No relevant knowledge found.")
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Println(context)
		return nil
	}

	rendered, err := renderer.Render(context)
	if err != nil {
		fmt.Println(context)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

// snippet shortens chunk text for terminal display.
func snippet(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes-3]) + "..."
}

// outputJSON writes results as JSON to stdout.
func outputJSON(results []store.Result) error {
	type row struct {
		Document string  `json:"document"`
		Text     string  `json:"text"`
		Score    float64 `json:"score"`
	}

	rows := make([]row, 0, len(results))
	for _, r := range results {
		rows = append(rows, row{Document: r.Document.Name, Text: r.Chunk.Text, Score: r.Score})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

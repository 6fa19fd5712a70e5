package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/server"
	"github.com/aura-companion/aura/internal/ui"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the local HTTP API used by chat frontends.

Endpoints:
  GET    /health          liveness and embedding backend info
  POST   /ingest          multipart document upload
  POST   /query           context retrieval for a message
  GET    /documents       list ingested documents
  DELETE /documents/{id}  remove a document
  POST   /reset           clear the knowledge base

Examples:
  # Serve on the configured address
  aura serve

  # Serve on a specific address
  aura serve --addr 127.0.0.1:9000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, cancel := signalContext()
	defer cancel()

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Println(ui.Header.Render("aura API"))
	fmt.Printf("Address:  http://%s\n", addr)
	fmt.Printf("Provider: %s (%s)\n", engine.Embedder().Provider(), engine.Embedder().ModelName())
	fmt.Printf("Store:    %s\n", cfg.Store.Backend)
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()

	return server.New(engine, cfg.Ingest.MaxFileSize).Run(ctx, addr)
}

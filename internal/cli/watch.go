package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/ui"
	"github.com/aura-companion/aura/internal/watcher"
)

var watchNoInitial bool

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Watch a directory and keep the knowledge base in sync",
	Long: `Watch a directory for document changes and update the knowledge base
automatically.

An initial ingest of the directory is performed first (unless --no-initial
is specified), then changes are picked up as they happen: new and modified
files are re-ingested, deleted files are removed. Unchanged files are
skipped by content hash.

Examples:
  # Watch the current directory
  aura watch

  # Watch a specific directory
  aura watch ./knowledge

  # Skip the initial sync
  aura watch --no-initial`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatchCmd,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoInitial, "no-initial", false, "skip initial ingest sync")
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	cfg := config.Get()

	ctx, cancel := signalContext()
	defer cancel()

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	if !watchNoInitial {
		fmt.Println(ui.Header.Render("Initial Sync"))
		fmt.Printf("Path: %s\n", absPath)
		fmt.Printf("Provider: %s (%s)\n\n", engine.Embedder().Provider(), engine.Embedder().ModelName())

		ingested, skipped, failed, err := ingestDirectory(ctx, engine, cfg, absPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil // User cancelled
			}
			return fmt.Errorf("initial sync failed: %w", err)
		}
		fmt.Printf("\nInitial sync complete: %d ingested, %d unchanged, %d failed\n\n",
			ingested, skipped, failed)
	}

	w, err := watcher.New(
		absPath,
		engine,
		watcher.WithDebounceTime(500*time.Millisecond),
		watcher.WithMaxFileSize(cfg.Ingest.MaxFileSize),
		watcher.WithEventCallback(func(event, path string) {
			log.Debug("Document event", "event", event, "path", path)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	fmt.Println(ui.Header.Render("Watching for Changes"))
	fmt.Printf("Directory: %s\n", absPath)
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()

	// Ctrl+C cancels the context; that is the normal way to stop.
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("\nStopped watching.")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/fs"
	"github.com/aura-companion/aura/internal/knowledge"
	"github.com/aura-companion/aura/internal/loader"
	"github.com/aura-companion/aura/internal/ui"
)

var (
	ingestForce  bool
	ingestHidden bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Add documents to the knowledge base",
	Long: `Ingest files or directories into the knowledge base.

Files are loaded, split into overlapping chunks, embedded, and stored for
retrieval. Directories are walked recursively; only supported formats
(.txt, .md, .pdf, .docx) are picked up, and gitignore-style patterns from
the configuration are honored.

Files already ingested with unchanged content are skipped unless --force
is given.

Examples:
  # Ingest a single file
  aura ingest notes.md

  # Ingest a directory
  aura ingest ./journal

  # Re-ingest even if unchanged
  aura ingest --force notes.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest files even if content is unchanged")
	ingestCmd.Flags().BoolVar(&ingestHidden, "hidden", false, "include hidden files and directories")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	ctx, cancel := signalContext()
	defer cancel()

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	var ingested, skipped, failed int

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("path does not exist: %w", err)
		}

		if info.IsDir() {
			in, sk, fl, err := ingestDirectory(ctx, engine, cfg, path)
			if err != nil {
				return err
			}
			ingested += in
			skipped += sk
			failed += fl
			continue
		}

		switch ingestFile(ctx, engine, path, filepath.Base(path)) {
		case ingestOK:
			ingested++
		case ingestSkipped:
			skipped++
		case ingestFailed:
			failed++
		case ingestCancelled:
			return ctx.Err()
		}
	}

	fmt.Println()
	fmt.Printf("%s %d ingested, %d skipped, %d failed\n",
		ui.Header.Render("Done:"), ingested, skipped, failed)

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to ingest", failed)
	}
	return nil
}

// ingestDirectory walks root and ingests every supported document under it.
func ingestDirectory(ctx context.Context, engine *knowledge.Engine, cfg *config.Config, root string) (ingested, skipped, failed int, err error) {
	walker, err := fs.NewFileWalker(fs.WalkOptions{
		Root:           root,
		MaxFileSize:    cfg.Ingest.MaxFileSize,
		IgnorePatterns: cfg.Ingest.Ignore,
		IncludeHidden:  ingestHidden,
		UseGitignore:   true,
	})
	if err != nil {
		return 0, 0, 0, err
	}

	err = walker.Walk(func(fi fs.FileInfo) error {
		switch ingestFile(ctx, engine, fi.Path, fi.RelPath) {
		case ingestOK:
			ingested++
		case ingestSkipped:
			skipped++
		case ingestFailed:
			failed++
		case ingestCancelled:
			return ctx.Err()
		}
		return nil
	})
	return ingested, skipped, failed, err
}

type ingestOutcome int

const (
	ingestOK ingestOutcome = iota
	ingestSkipped
	ingestFailed
	ingestCancelled
)

// ingestFile ingests one file under the given document name, replacing any
// previous version of the same name.
func ingestFile(ctx context.Context, engine *knowledge.Engine, path, name string) ingestOutcome {
	if ctx.Err() != nil {
		return ingestCancelled
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("Failed to read file", "path", path, "error", err)
		return ingestFailed
	}

	existing, err := engine.FindDocumentByName(name)
	if err != nil {
		log.Error("Failed to look up document", "name", name, "error", err)
		return ingestFailed
	}
	if existing != nil {
		if !ingestForce && existing.Hash == knowledge.HashContent(data) {
			fmt.Printf("%s %s\n", ui.Dim.Render("unchanged"), name)
			return ingestSkipped
		}
		if _, err := engine.DeleteDocument(existing.ID); err != nil {
			log.Error("Failed to replace document", "name", name, "error", err)
			return ingestFailed
		}
	}

	result, err := engine.Ingest(ctx, name, loader.DetectMIMEType(name, ""), data)
	if err != nil {
		if ctx.Err() != nil {
			return ingestCancelled
		}
		log.Error("Failed to ingest", "name", name, "error", err)
		return ingestFailed
	}

	fmt.Printf("%s %s %s\n",
		ui.Success.Render("ingested"),
		name,
		ui.Dim.Render(fmt.Sprintf("(%d chunks)", result.ChunkCount)),
	)
	return ingestOK
}

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aura-companion/aura/internal/config"
	"github.com/aura-companion/aura/internal/ui"
)

var documentsYes bool

// documentsCmd groups document management subcommands.
var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocumentsList(cmd, args)
	},
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE:  runDocumentsList,
}

var documentsRmCmd = &cobra.Command{
	Use:   "rm <id-or-name>...",
	Short: "Remove documents by ID or name",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentsRm,
}

var documentsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all documents",
	RunE:  runDocumentsClear,
}

func init() {
	documentsClearCmd.Flags().BoolVarP(&documentsYes, "yes", "y", false, "skip confirmation")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsRmCmd)
	documentsCmd.AddCommand(documentsClearCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(config.Get())
	if err != nil {
		return err
	}
	defer engine.Close()

	docs, err := engine.Documents()
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		fmt.Println()
		fmt.Println("Run 'aura ingest <path>' to add some.")
		return nil
	}

	fmt.Println(ui.Header.Render("Documents"))
	fmt.Println()

	for _, doc := range docs {
		fmt.Printf("%s\n", ui.FormatDocument(doc.Name, doc.ChunkCount))
		fmt.Printf("  %s %s\n", ui.Dim.Render("ID:"), doc.ID)
		fmt.Printf("  %s %s\n", ui.Dim.Render("Type:"), doc.MIMEType)
		fmt.Printf("  %s %s\n", ui.Dim.Render("Uploaded:"), doc.UploadedAt.Local().Format("Jan 2, 2006 at 15:04"))
		fmt.Println()
	}

	fmt.Println(ui.Dim.Render(fmt.Sprintf("Total: %d documents", len(docs))))
	return nil
}

func runDocumentsRm(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(config.Get())
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, arg := range args {
		doc, err := engine.Document(arg)
		if err != nil {
			return err
		}
		if doc == nil {
			// Fall back to name lookup
			doc, err = engine.FindDocumentByName(arg)
			if err != nil {
				return err
			}
		}
		if doc == nil {
			fmt.Printf("%s %s\n", ui.Warning.Render("not found"), arg)
			continue
		}

		removed, err := engine.DeleteDocument(doc.ID)
		if err != nil {
			return fmt.Errorf("failed to remove %s: %w", doc.Name, err)
		}
		fmt.Printf("%s %s %s\n",
			ui.Success.Render("removed"),
			doc.Name,
			ui.Dim.Render(fmt.Sprintf("(%d chunks)", removed)),
		)
	}

	return nil
}

func runDocumentsClear(cmd *cobra.Command, args []string) error {
	if !documentsYes {
		fmt.Print("Remove all documents from the knowledge base? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	engine, err := openEngine(config.Get())
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Reset(); err != nil {
		return fmt.Errorf("failed to clear knowledge base: %w", err)
	}

	fmt.Println(ui.Success.Render("Knowledge base cleared."))
	return nil
}

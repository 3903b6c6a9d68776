package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/futig/admissions-assistant/internal/entity"
	"github.com/futig/admissions-assistant/internal/pkg/validator"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Index a .txt or .md document",
	Long:  `Chunks, embeds and indexes a document. Pass a file or the --text flag.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngest,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Remove a document and all of its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

// ingest flags
var (
	ingestText     string
	ingestTitle    string
	ingestCategory string
	ingestID       string
)

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "Document text instead of a file")
	ingestCmd.Flags().StringVarP(&ingestTitle, "title", "t", "", "Document title (defaults to the file name)")
	ingestCmd.Flags().StringVarP(&ingestCategory, "category", "c", "", "Document category")
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "Document id (generated when empty)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(statsCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	req := &entity.IngestDocumentRequest{
		DocumentID: ingestID,
		Text:       ingestText,
		Title:      ingestTitle,
		Category:   ingestCategory,
	}

	switch {
	case len(args) == 1 && ingestText != "":
		return errors.New("pass either a file or --text, not both")
	case len(args) == 1:
		path := args[0]
		if err := services.Validator.ValidateExtension(path); err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		req.Text = string(content)
		req.Filename = validator.SanitizeFilename(filepath.Base(path))
		if req.Title == "" {
			req.Title = validator.TitleFromFilename(path)
		}
	case ingestText == "":
		return errors.New("nothing to ingest: pass a file or --text")
	}

	if err := services.Documents.Normalize(req); err != nil {
		return err
	}
	resp, err := services.Documents.Ingest(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Indexed %s (%d chunks)\n", resp.DocumentID, resp.ChunkCount)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	removed, err := services.Documents.Delete(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	cmd.Printf("Deleted %s (%d chunks removed)\n", args[0], removed)
	return nil
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	list, err := services.Documents.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if list.Total == 0 {
		cmd.Println("No documents indexed")
		return nil
	}

	for _, doc := range list.Documents {
		cmd.Printf("  %s\n", doc.ID)
		cmd.Printf("    Title:    %s\n", doc.Title)
		cmd.Printf("    Category: %s\n", doc.Category)
		cmd.Printf("    Chunks:   %d\n", len(doc.ChunkIDs))
		cmd.Printf("    Ingested: %s\n", doc.IngestedAt.Format("2006-01-02 15:04:05"))
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", list.Total)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	stats, err := services.Documents.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	cmd.Printf("Chunks:            %d\n", stats.ChunkCount)
	cmd.Printf("Documents (index): %d\n", stats.DocumentCount)
	cmd.Printf("Documents (store): %d\n", stats.IndexedDocuments)
	return nil
}

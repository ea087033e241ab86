package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/erpkb/internal/adapters/boltstore"
	"github.com/corey/erpkb/internal/adapters/fsstore"
)

var importCatalogs []string

var importCmd = &cobra.Command{
	Use:   "import <knowledge-dir> <bolt-db>",
	Short: "Import a knowledge directory into a bolt database",
	Long:  "Copies catalog entries from a <catalog>/<name>.json directory tree into a\nbolt database file, so a backend can be served from a single file.",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringSliceVar(&importCatalogs, "catalogs", []string{"operations", "flows", "errors", "recommendations"}, "catalogs to import")
}

func runImport(cmd *cobra.Command, args []string) error {
	src := fsstore.New(args[0])
	dst, err := boltstore.Open(args[1])
	if err != nil {
		return err
	}
	defer dst.Close()

	ctx := context.Background()
	imported := 0
	for _, cat := range importCatalogs {
		names, err := src.ListEntryNames(ctx, cat)
		if err != nil {
			// Absent catalogs are skipped; a knowledge set rarely carries
			// all four.
			continue
		}
		if err := dst.Import(ctx, src, []string{cat}); err != nil {
			return fmt.Errorf("import %s: %w", cat, err)
		}
		imported += len(names)
		fmt.Printf("imported %s (%d entries)\n", cat, len(names))
	}
	if imported == 0 {
		return fmt.Errorf("no entries found under %s", args[0])
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ObiAU/sieratagger/internal/sources"
	"github.com/ObiAU/sieratagger/internal/store/sqlite"
)

var importCmd = &cobra.Command{
	Use:   "import <articles.json>",
	Short: "Load articles from a JSON file into the database",
	Long: `Reads a JSON array of {"id", "title", "text"} objects and stores the
articles in the sqlite database. Articles with an existing id are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("db", "", "sqlite database (default ARTICLES_DB)")
}

func runImport(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.ArticlesDB
	}

	articles, err := sources.NewJSONFileSource(args[0]).FetchArticles(cmd.Context())
	if err != nil {
		return err
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ImportArticles(cmd.Context(), articles); err != nil {
		return fmt.Errorf("importing articles: %w", err)
	}

	logger.Info("articles imported", "file", args[0], "db", dbPath, "count", len(articles))
	cmd.Printf("Imported %d articles into %s.\n", len(articles), dbPath)
	return nil
}

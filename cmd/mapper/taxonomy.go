package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/catalog-mapper/internal/cli"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

func taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Manage the marketplace category tree",
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Download the category tree from the marketplace",
		RunE:  runTaxonomyFetch,
	}
	fetch.Flags().String("language", "", "tree language (default from taxonomy.language)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the local category tree",
		RunE:  runTaxonomyStats,
	}

	cmd.AddCommand(fetch, stats)
	return cmd
}

func runTaxonomyFetch(cmd *cobra.Command, _ []string) error {
	language, _ := cmd.Flags().GetString("language")
	if language == "" {
		language = settings.Taxonomy.Language
	}

	client, err := newClient(settings, settings.Credentials())
	if err != nil {
		return err
	}

	root, err := client.DescriptionTree(cmd.Context(), language)
	if err != nil {
		return err
	}

	data, err := json.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to encode category tree: %w", err)
	}

	path := settings.Taxonomy.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create taxonomy directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write category tree: %w", err)
	}

	idx := taxonomy.New(root, taxonomy.Options{SkipDisabled: settings.Taxonomy.SkipDisabled})
	slog.Info("Category tree saved", "path", path, "leaves", idx.Len())
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved %d types to %s", idx.Len(), path))) //nolint:forbidigo // User-facing output
	return nil
}

func runTaxonomyStats(_ *cobra.Command, _ []string) error {
	idx, err := loadIndex(settings)
	if err != nil {
		return err
	}

	s := idx.Stats()
	rows := [][]string{
		{"Leaves (types)", strconv.Itoa(s.Leaves)},
		{"Categories", strconv.Itoa(s.Categories)},
		{"Maximum depth", strconv.Itoa(s.MaxDepth)},
		{"Leaves without category id", strconv.Itoa(s.LeavesWithoutCategory)},
		{"Disabled nodes", strconv.Itoa(s.DisabledNodes)},
	}
	fmt.Println(renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})) //nolint:forbidigo // User-facing output
	return nil
}

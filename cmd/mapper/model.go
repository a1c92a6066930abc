package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/catalog-mapper/internal/cli"
	"github.com/Veraticus/catalog-mapper/internal/feed"
	"github.com/Veraticus/catalog-mapper/internal/matcher"
)

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage the tfidf matching model",
	}

	fit := &cobra.Command{
		Use:   "fit",
		Short: "Fit the tfidf model on the category tree",
		Long: `Fit inverse document frequencies over every type name and category name
of the taxonomy, optionally adding the offer names of the local feed, and
save the model to matching.model_path.`,
		RunE: runModelFit,
	}
	fit.Flags().Bool("with-feed", false, "add the offer names of the local feed to the corpus")

	cmd.AddCommand(fit)
	return cmd
}

func runModelFit(cmd *cobra.Command, _ []string) error {
	withFeed, _ := cmd.Flags().GetBool("with-feed")

	idx, err := loadIndex(settings)
	if err != nil {
		return err
	}

	corpus := append(idx.Corpus(), idx.CategoryNames()...)
	if withFeed {
		catalog, err := feed.ParseFile(settings.Feed.Path)
		if err != nil {
			return err
		}
		for _, offer := range catalog.Offers {
			corpus = append(corpus, offer.Name)
		}
	}

	norm, err := matcher.NewNormalizer(settings.Matching.Alphabets, settings.Matching.Stopword)
	if err != nil {
		return err
	}

	m := matcher.Fit(corpus, norm)
	if m.VocabularySize() == 0 {
		return fmt.Errorf("corpus of %d documents produced an empty vocabulary", len(corpus))
	}
	if err := m.Save(settings.Matching.ModelPath); err != nil {
		return err
	}

	slog.Info("Model fitted", "documents", m.Documents, "vocabulary", m.VocabularySize(), "path", settings.Matching.ModelPath)
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Fitted %d terms over %d documents, saved to %s", //nolint:forbidigo // User-facing output
		m.VocabularySize(), m.Documents, settings.Matching.ModelPath)))
	return nil
}

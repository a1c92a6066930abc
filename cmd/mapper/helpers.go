package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/catalog-mapper/internal/api"
	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/config"
	"github.com/Veraticus/catalog-mapper/internal/engine"
	"github.com/Veraticus/catalog-mapper/internal/feed"
	"github.com/Veraticus/catalog-mapper/internal/marketplace"
	"github.com/Veraticus/catalog-mapper/internal/matcher"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/payload"
	"github.com/Veraticus/catalog-mapper/internal/storage"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

// loadIndex reads and flattens the configured taxonomy.
func loadIndex(s *config.Settings) (*taxonomy.Index, error) {
	root, err := taxonomy.Load(s.Taxonomy.Path)
	if err != nil {
		return nil, common.NewUserError(
			fmt.Sprintf("Could not load the category tree from %s. Run `mapper taxonomy fetch` first.", s.Taxonomy.Path), err)
	}

	idx := taxonomy.New(root, taxonomy.Options{SkipDisabled: s.Taxonomy.SkipDisabled})
	slog.Info("Taxonomy loaded", "path", s.Taxonomy.Path, "leaves", idx.Len())
	return idx, nil
}

// openLedger opens and migrates the submission ledger.
func openLedger(ctx context.Context, s *config.Settings) (*storage.Ledger, error) {
	ledger, err := storage.Open(s.Storage.Path)
	if err != nil {
		return nil, err
	}
	if err := ledger.Migrate(ctx); err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return ledger, nil
}

// offerSource returns the feed source for feedURL, or the configured feed
// when feedURL is empty.
func offerSource(s *config.Settings, feedURL string) engine.OfferSource {
	if feedURL == "" {
		feedURL = s.Feed.URL
	}
	if feedURL != "" {
		return feed.NewHTTPSource(feedURL, s.Feed.Path)
	}
	return feed.FileSource{Path: s.Feed.Path}
}

// newClient creates a marketplace client, falling back to the configured
// credentials for missing halves.
func newClient(s *config.Settings, creds model.Credentials) (*marketplace.Client, error) {
	if creds.ClientID == "" {
		creds.ClientID = s.Marketplace.ClientID
	}
	if creds.APIKey == "" {
		creds.APIKey = s.Marketplace.APIKey
	}
	return marketplace.New(s.MarketplaceConfig(creds))
}

// buildDependencies loads everything a session needs. The ledger may be nil.
// onBatch, when set, is attached to every marketplace client.
func buildDependencies(s *config.Settings, ledger *storage.Ledger, onBatch func(marketplace.BatchResult)) (engine.Dependencies, error) {
	idx, err := loadIndex(s)
	if err != nil {
		return engine.Dependencies{}, err
	}

	m, err := matcher.New(s.MatcherConfig())
	if err != nil {
		return engine.Dependencies{}, fmt.Errorf("failed to create matcher: %w", err)
	}

	deps := engine.Dependencies{
		Index:   idx,
		Matcher: m,
		Builder: payload.NewBuilder(s.Payload),
		NewSubmitter: func(creds model.Credentials) (engine.Submitter, error) {
			client, err := newClient(s, creds)
			if err != nil {
				return nil, err
			}
			client.OnBatch = onBatch
			return client, nil
		},
	}
	if ledger != nil {
		deps.Recorder = ledger
	}
	return deps, nil
}

// sourceFactory adapts offerSource for the HTTP server.
func sourceFactory(s *config.Settings) api.SourceFactory {
	return func(feedURL string) (engine.OfferSource, error) {
		return offerSource(s, feedURL), nil
	}
}

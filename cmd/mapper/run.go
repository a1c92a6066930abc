package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/catalog-mapper/internal/cli"
	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/engine"
	"github.com/Veraticus/catalog-mapper/internal/marketplace"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/storage"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Review a feed interactively and submit the listings",
		Long: `Scan the feed from the configured offset, resolving confident matches
automatically and asking on the console when the best match is below the
threshold. When the scan stops the ready listings can be submitted.`,
		RunE: runReview,
	}

	cmd.Flags().String("feed", "", "local feed file (also the download cache for --feed-url)")
	cmd.Flags().String("feed-url", "", "download the feed from this URL before scanning")
	cmd.Flags().String("backend", "", "matching backend (sequence, levenshtein, tokenset, tfidf)")
	cmd.Flags().Float64("threshold", 0, "auto-resolve threshold in [0, 1]")
	cmd.Flags().Int("offset", 0, "feed position to start from")
	cmd.Flags().Int("max-items", 0, "stop after this many ready items")
	cmd.Flags().String("keyword", "", "only consider offers whose name contains this text")
	cmd.Flags().String("client-id", "", "marketplace client id")
	cmd.Flags().String("api-key", "", "marketplace api key")
	cmd.Flags().Bool("dry-run", false, "review only, never submit")
	cmd.Flags().Bool("yes", false, "submit without asking for confirmation")
	cmd.Flags().String("output", "", "write the ready listings to this JSON file")

	for flag, key := range map[string]string{
		"feed":      "feed.path",
		"feed-url":  "feed.url",
		"backend":   "matching.backend",
		"threshold": "matching.threshold",
		"offset":    "session.offset",
		"max-items": "session.max_items",
		"keyword":   "session.keyword",
		"client-id": "marketplace.client_id",
		"api-key":   "marketplace.api_key",
	} {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	assumeYes, _ := cmd.Flags().GetBool("yes")
	output, _ := cmd.Flags().GetString("output")

	if !dryRun && !settings.Credentials().Complete() {
		return common.NewUserError(
			"Marketplace credentials are missing. Set marketplace.client_id and marketplace.api_key, or review with --dry-run.",
			common.ErrMissingConfig)
	}

	interrupts := cli.NewInterruptHandler(os.Stdout)
	ctx := interrupts.HandleInterrupts(cmd.Context())

	ledger, err := openLedger(ctx, settings)
	if err != nil {
		slog.Warn("Submission history is unavailable", "path", settings.Storage.Path, "error", err)
		ledger = nil
	} else {
		defer func() { _ = ledger.Close() }()
	}

	// The bar is created once the item count is known, right before submitting.
	var progress func(marketplace.BatchResult)
	onBatch := func(r marketplace.BatchResult) {
		if progress != nil {
			progress(r)
		}
	}

	deps, err := buildDependencies(settings, ledger, onBatch)
	if err != nil {
		return err
	}
	if dryRun {
		deps.NewSubmitter = nil
	}

	manager, err := engine.NewManager(deps, settings.Session)
	if err != nil {
		return err
	}
	session := manager.Create()
	prompter := cli.NewPrompter(os.Stdin, os.Stdout, settings.Session.Threshold)

	fmt.Println(cli.FormatTitle("Catalog review")) //nolint:forbidigo // User-facing output

	st, err := session.Start(ctx, engine.StartRequest{
		Source:      offerSource(settings, ""),
		Credentials: settings.Credentials(),
	})
	if err != nil {
		return common.NewUserError("Could not start the review", err)
	}

	st, err = reviewLoop(ctx, session, prompter, deps.Index, st)
	if err != nil && !errors.Is(err, cli.ErrInputCancelled) && !errors.Is(err, cli.ErrInputClosed) {
		return err
	}
	if err := prompter.ShowStatus(st); err != nil {
		slog.Warn("Failed to write status", "error", err)
	}

	if output != "" {
		if err := writeItems(output, session.ReadyItems()); err != nil {
			return err
		}
		fmt.Println(cli.FormatSuccess("Wrote ready listings to " + output)) //nolint:forbidigo // User-facing output
	}

	if interrupts.WasInterrupted() || dryRun || st.ItemsReady == 0 || st.PendingDecisionID != "" {
		return nil
	}

	if !assumeYes {
		ok, err := prompter.Confirm(ctx, fmt.Sprintf("Submit %d listings to the marketplace?", st.ItemsReady))
		if err != nil || !ok {
			fmt.Println(cli.FormatInfo("Nothing was submitted.")) //nolint:forbidigo // User-facing output
			return nil
		}
	}

	progress = cli.SubmissionProgress(os.Stdout, st.ItemsReady)
	taskID, err := session.Submit(ctx)
	if err != nil {
		return common.NewUserError("Submission failed", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Submitted. Task id: %d", taskID))) //nolint:forbidigo // User-facing output
	fmt.Println(cli.FormatInfo("Check the import with: mapper task " + fmt.Sprint(taskID))) //nolint:forbidigo // User-facing output
	return nil
}

// reviewLoop settles pending decisions until the scan stops or input ends.
// The last known status is always returned.
func reviewLoop(ctx context.Context, session *engine.Session, prompter *cli.Prompter, idx *taxonomy.Index, st engine.Status) (engine.Status, error) {
	for st.Decision != nil {
		d := *st.Decision

		choice, err := prompter.ReviewDecision(ctx, d)
		if err != nil {
			return st, err
		}

		var next engine.Status
		switch choice.Action {
		case cli.ActionSkip:
			next, err = session.Skip(d.ID)
		case cli.ActionCustom:
			if len(idx.Lookup(choice.TypeID)) == 0 {
				ok, confirmErr := prompter.Confirm(ctx, fmt.Sprintf("Type id %d is not in the category tree. Use it anyway?", choice.TypeID))
				if confirmErr != nil {
					return st, confirmErr
				}
				if !ok {
					continue
				}
			}
			next, err = session.Resolve(d.ID, choice.TypeID, choice.DescriptionCategoryID)
		default:
			next, err = session.Resolve(d.ID, choice.TypeID, choice.DescriptionCategoryID)
		}
		if err != nil {
			return st, err
		}
		st = next
	}
	return st, nil
}

func writeItems(path string, items []model.ListingPayload) error {
	if items == nil {
		items = []model.ListingPayload{}
	}
	data, err := json.MarshalIndent(map[string]any{"items": items}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode listings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write listings: %w", err)
	}
	return nil
}

var _ engine.Recorder = (*storage.Ledger)(nil)

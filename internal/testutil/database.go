// Package testutil provides shared setup helpers for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/storage"
)

// SetupTestLedger creates a migrated in-memory ledger that is closed when
// the test finishes.
func SetupTestLedger(t *testing.T) *storage.Ledger {
	t.Helper()

	ledger, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create test ledger: %v", err)
	}

	if err := ledger.Migrate(context.Background()); err != nil {
		_ = ledger.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = ledger.Close()
	})

	return ledger
}

// SeedSubmission records a submission of the given offer ids and returns it.
func SeedSubmission(t *testing.T, ledger *storage.Ledger, taskID int64, submittedAt time.Time, offerIDs ...string) model.Submission {
	t.Helper()

	sub := model.Submission{
		TaskID:      taskID,
		SessionID:   "session-test",
		SubmittedAt: submittedAt,
	}
	for i, id := range offerIDs {
		sub.Items = append(sub.Items, model.ListingPayload{
			OfferID:               id,
			Name:                  "Item " + id,
			TypeID:                int64(1000 + i),
			DescriptionCategoryID: 10,
		})
	}

	if err := ledger.RecordSubmission(context.Background(), sub); err != nil {
		t.Fatalf("failed to seed submission %d: %v", taskID, err)
	}
	return sub
}

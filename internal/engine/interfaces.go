package engine

import (
	"context"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

// OfferSource supplies the offers of a feed in document order.
type OfferSource interface {
	Offers(ctx context.Context) ([]model.Offer, error)
}

// Submitter sends listing payloads to the marketplace and polls import tasks.
type Submitter interface {
	// SubmitItems returns the id of the last import task that was accepted.
	SubmitItems(ctx context.Context, items []model.ListingPayload) (int64, error)
	TaskInfo(ctx context.Context, taskID int64) (*model.TaskInfo, error)
}

// SubmitterFactory builds a Submitter for the credentials given at start.
type SubmitterFactory func(creds model.Credentials) (Submitter, error)

// Recorder keeps a durable history of submissions. It is optional.
type Recorder interface {
	RecordSubmission(ctx context.Context, sub model.Submission) error
	RecordTaskInfo(ctx context.Context, info *model.TaskInfo) error
}

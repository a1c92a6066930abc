package engine

import (
	"context"
	"slices"
	"sync"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

// StaticSource serves a fixed list of offers.
type StaticSource []model.Offer

// Offers implements OfferSource.
func (s StaticSource) Offers(_ context.Context) ([]model.Offer, error) {
	return slices.Clone(s), nil
}

// FailingSource always fails to load.
type FailingSource struct {
	Err error
}

// Offers implements OfferSource.
func (s FailingSource) Offers(_ context.Context) ([]model.Offer, error) {
	return nil, s.Err
}

// MockSubmitter is a test implementation of Submitter. It records every
// submission and hands out increasing task ids.
type MockSubmitter struct {
	SubmitErr   error
	TaskInfoErr error
	// PartialErr is returned together with a task id, as when a later
	// chunk fails after an earlier one was accepted.
	PartialErr  error
	// Block, when set, is waited on before SubmitItems returns.
	Block       chan struct{}
	Submissions [][]model.ListingPayload
	Polled      []int64
	nextTaskID  int64
	mu          sync.Mutex
}

// NewMockSubmitter creates a submitter whose first task id is firstTaskID.
func NewMockSubmitter(firstTaskID int64) *MockSubmitter {
	return &MockSubmitter{nextTaskID: firstTaskID}
}

// SubmitItems implements Submitter.
func (m *MockSubmitter) SubmitItems(ctx context.Context, items []model.ListingPayload) (int64, error) {
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubmitErr != nil {
		return 0, m.SubmitErr
	}
	m.Submissions = append(m.Submissions, slices.Clone(items))
	id := m.nextTaskID
	m.nextTaskID++
	return id, m.PartialErr
}

// TaskInfo implements Submitter. Every item of the task is reported imported.
func (m *MockSubmitter) TaskInfo(_ context.Context, taskID int64) (*model.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Polled = append(m.Polled, taskID)
	if m.TaskInfoErr != nil {
		return nil, m.TaskInfoErr
	}

	info := &model.TaskInfo{TaskID: taskID}
	if n := len(m.Submissions); n > 0 {
		for _, item := range m.Submissions[n-1] {
			info.Items = append(info.Items, model.TaskItemStatus{OfferID: item.OfferID, Status: "imported"})
		}
	}
	info.Total = len(info.Items)
	return info, nil
}

// SubmissionCount returns the number of successful SubmitItems calls.
func (m *MockSubmitter) SubmissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Submissions)
}

// Factory returns a SubmitterFactory that always hands out m.
func (m *MockSubmitter) Factory() SubmitterFactory {
	return func(model.Credentials) (Submitter, error) {
		return m, nil
	}
}

// MockRecorder is a test implementation of Recorder.
type MockRecorder struct {
	Submissions []model.Submission
	TaskInfos   []*model.TaskInfo
	mu          sync.Mutex
}

// RecordSubmission implements Recorder.
func (r *MockRecorder) RecordSubmission(_ context.Context, sub model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Submissions = append(r.Submissions, sub)
	return nil
}

// RecordTaskInfo implements Recorder.
func (r *MockRecorder) RecordTaskInfo(_ context.Context, info *model.TaskInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TaskInfos = append(r.TaskInfos, info)
	return nil
}

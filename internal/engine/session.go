package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/decision"
	"github.com/Veraticus/catalog-mapper/internal/matcher"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/payload"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

// Session errors.
var (
	ErrNotInitialized       = errors.New("session not initialized")
	ErrDecisionMismatch     = errors.New("decision id does not match the pending decision")
	ErrPendingDecision      = errors.New("a decision is pending")
	ErrNoItems              = errors.New("no items ready for submission")
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

// SuggestionCount is how many candidates a pending decision exposes.
const SuggestionCount = 5

const (
	msgIdle         = "Idle"
	msgInitialized  = "Initialized. Ready to process."
	msgAwaiting     = "Awaiting decision for offer %s"
	msgProcessed    = "Offer processed. Items ready: %d"
	msgCapReached   = "Reached the maximum of %d items. Ready to submit."
	msgExhausted    = "All offers in the feed were considered. Ready to submit."
	msgReset        = "Session reset. Ready for a new configuration."
	msgSubmitting   = "Submitting %d items"
	msgSubmitted    = "Submitted to the marketplace. Task ID: %d"
	msgSubmitFailed = "Submission to the marketplace failed."
	msgSubmitCut    = "Submission interrupted. Last task ID: %d"
	msgSourceFailed = "Failed to load the feed."
	msgClientFailed = "Failed to create the marketplace client."
)

// Params are the scan parameters a session starts with and returns to on reset.
type Params struct {
	Keyword   string
	Offset    int
	MaxItems  int
	Threshold float64
}

// DefaultParams returns the built-in scan parameters.
func DefaultParams() Params {
	return Params{
		Offset:    0,
		MaxItems:  300,
		Threshold: DefaultThreshold,
	}
}

// Dependencies are shared by every session of a Manager.
type Dependencies struct {
	Index        *taxonomy.Index
	Matcher      matcher.Matcher
	Builder      *payload.Builder
	NewSubmitter SubmitterFactory
	Recorder     Recorder
}

// StartRequest configures a run. Nil fields take the session defaults.
type StartRequest struct {
	Source      OfferSource
	Offset      *int
	MaxItems    *int
	Threshold   *float64
	Credentials model.Credentials
	Keyword     string
}

// DecisionDetails describes the pending decision for a reviewer.
type DecisionDetails struct {
	ID          string           `json:"id"`
	OfferID     string           `json:"offer_id"`
	Name        string           `json:"name"`
	Suggestions model.Candidates `json:"suggestions"`
	Similarity  float64          `json:"current_similarity"`
}

// Status is a point-in-time view of a session.
type Status struct {
	TaskInfo          *model.TaskInfo               `json:"task_info,omitempty"`
	Decision          *DecisionDetails              `json:"decision_details,omitempty"`
	Stats             map[model.ResolutionState]int `json:"stats"`
	SessionID         string                        `json:"session_id"`
	Message           string                        `json:"status_message"`
	PendingDecisionID string                        `json:"pending_decision_id,omitempty"`
	Backend           string                        `json:"backend"`
	Error             string                        `json:"error_message,omitempty"`
	Processed         int                           `json:"processed_item_count"`
	TotalToConsider   int                           `json:"total_offers_to_consider"`
	CurrentIndex      int                           `json:"current_offer_index"`
	ItemsReady        int                           `json:"items_ready_for_submission"`
	Filtered          int                           `json:"filtered"`
	TaskID            int64                         `json:"task_id,omitempty"`
	Initialized       bool                          `json:"initialized"`
	Submitting        bool                          `json:"submitting"`
}

// Session is one review run over a feed. Every method serializes on the
// session lock, so at most one decision is ever pending.
type Session struct {
	deps      Dependencies
	defaults  Params
	params    Params
	store     *decision.Store
	resolver  *Resolver
	submitter Submitter
	taskInfo  *model.TaskInfo
	stats     map[model.ResolutionState]int
	id        string
	message   string
	pendingID string
	lastErr   string
	keyword   string
	offers    []model.Offer
	ready     []model.ListingPayload
	cursor    int
	processed int
	filtered  int
	taskID    int64
	// generation changes on every start and reset so that a submission
	// finishing late does not write into a newer run.
	generation  uint64
	mu          sync.Mutex
	initialized bool
	submitting  bool
}

// NewSession creates an idle session.
func NewSession(id string, deps Dependencies, defaults Params) *Session {
	return &Session{
		id:       id,
		deps:     deps,
		defaults: defaults,
		params:   defaults,
		store:    decision.NewStore(),
		stats:    make(map[model.ResolutionState]int),
		message:  msgIdle,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Start loads the feed, resets run state and scans until the first stop.
func (s *Session) Start(ctx context.Context, req StartRequest) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Source == nil {
		return Status{}, fmt.Errorf("offer source is required")
	}

	params := s.defaults
	if req.Offset != nil {
		params.Offset = max(*req.Offset, 0)
	}
	if req.MaxItems != nil {
		params.MaxItems = max(*req.MaxItems, 0)
	}
	if req.Threshold != nil {
		params.Threshold = *req.Threshold
	}
	if req.Keyword != "" {
		params.Keyword = req.Keyword
	}

	var submitter Submitter
	if s.deps.NewSubmitter != nil {
		var err error
		submitter, err = s.deps.NewSubmitter(req.Credentials)
		if err != nil {
			s.fail(msgClientFailed, err)
			return Status{}, fmt.Errorf("failed to create marketplace client: %w", err)
		}
	}

	offers, err := req.Source.Offers(ctx)
	if err != nil {
		s.fail(msgSourceFailed, err)
		return Status{}, fmt.Errorf("failed to load offers: %w", err)
	}

	s.clearRun()
	s.params = params
	s.keyword = cases.Fold().String(params.Keyword)
	s.offers = offers
	s.cursor = min(params.Offset, len(offers))
	s.submitter = submitter
	s.resolver = NewResolver(s.deps.Index, s.deps.Matcher, s.deps.Builder, s.store, params.Threshold)
	s.initialized = true
	s.message = msgInitialized

	slog.Info("Session started",
		"session_id", s.id,
		"offers", len(offers),
		"offset", params.Offset,
		"max_items", params.MaxItems,
		"keyword", params.Keyword,
		"threshold", params.Threshold,
		"backend", s.backend())

	s.advance()
	return s.status(), nil
}

// Advance resumes scanning. With a decision pending it changes nothing.
func (s *Session) Advance() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return Status{}, ErrNotInitialized
	}
	s.advance()
	return s.status(), nil
}

// Resolve applies a human choice to the pending decision and resumes
// scanning. A nil descriptionCategoryID falls back to typeID. Non-positive
// ids consume the decision and skip the offer as invalid.
func (s *Session) Resolve(id string, typeID int64, descriptionCategoryID *int64) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.takePending(id)
	if err != nil {
		return Status{}, err
	}

	out := s.resolver.Finalize(d.Offer, typeID, descriptionCategoryID)
	s.record(d.Offer, out)

	slog.Info("Decision resolved",
		"decision_id", id,
		"offer_id", d.Offer.ID,
		"type_id", typeID,
		"state", out.State)

	s.cursor++
	s.advance()
	return s.status(), nil
}

// Skip discards the pending decision and resumes scanning.
func (s *Session) Skip(id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.takePending(id)
	if err != nil {
		return Status{}, err
	}

	s.stats[model.StateSkippedByUser]++
	slog.Info("Decision skipped", "decision_id", id, "offer_id", d.Offer.ID)

	s.cursor++
	s.advance()
	return s.status(), nil
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

// ReadyItems returns a copy of the payloads waiting for submission.
func (s *Session) ReadyItems() []model.ListingPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ready)
}

// Reset drops the feed, pending decisions and ready items and restores the
// default parameters. A new Start is required afterwards.
func (s *Session) Reset() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearRun()
	s.params = s.defaults
	s.keyword = ""
	s.submitter = nil
	s.resolver = nil
	s.initialized = false
	s.message = msgReset

	slog.Info("Session reset", "session_id", s.id)
	return s.status()
}

// Submit sends every ready item to the marketplace and returns the task id.
// The session lock is released while the chunks are in flight so status
// reads stay responsive.
func (s *Session) Submit(ctx context.Context) (int64, error) {
	s.mu.Lock()
	switch {
	case !s.initialized:
		s.mu.Unlock()
		return 0, ErrNotInitialized
	case s.pendingID != "":
		s.mu.Unlock()
		return 0, ErrPendingDecision
	case s.submitting:
		s.mu.Unlock()
		return 0, ErrSubmissionInProgress
	case len(s.ready) == 0:
		s.mu.Unlock()
		return 0, ErrNoItems
	case s.submitter == nil:
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: no marketplace client", ErrNotInitialized)
	}

	items := slices.Clone(s.ready)
	submitter := s.submitter
	generation := s.generation
	s.submitting = true
	s.message = fmt.Sprintf(msgSubmitting, len(items))
	s.mu.Unlock()

	taskID, err := submitter.SubmitItems(ctx, items)

	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		slog.Warn("Session changed during submission, result not stored",
			"session_id", s.id,
			"task_id", taskID)
		return taskID, err
	}
	s.submitting = false

	if err != nil && taskID == 0 {
		s.fail(msgSubmitFailed, err)
		return 0, fmt.Errorf("failed to submit items: %w", err)
	}

	s.taskID = taskID
	s.lastErr = ""
	s.message = fmt.Sprintf(msgSubmitted, taskID)
	if err != nil {
		// An earlier chunk was accepted; its task id stays reportable.
		s.lastErr = err.Error()
		s.message = fmt.Sprintf(msgSubmitCut, taskID)
		slog.Warn("Submission ended early", "session_id", s.id, "task_id", taskID, "error", err)
	}

	if s.deps.Recorder != nil {
		sub := model.Submission{
			TaskID:      taskID,
			SessionID:   s.id,
			Items:       items,
			SubmittedAt: time.Now().UTC(),
		}
		if recErr := s.deps.Recorder.RecordSubmission(ctx, sub); recErr != nil {
			common.LogWarn("Failed to record submission", common.Fields{"task_id": taskID, "error": recErr})
		}
	}
	return taskID, nil
}

// TaskInfo polls an import task. A zero taskID means the session's last
// submission.
func (s *Session) TaskInfo(ctx context.Context, taskID int64) (*model.TaskInfo, error) {
	s.mu.Lock()
	submitter := s.submitter
	generation := s.generation
	if taskID == 0 {
		taskID = s.taskID
	}
	s.mu.Unlock()

	if submitter == nil {
		return nil, ErrNotInitialized
	}
	if taskID == 0 {
		return nil, fmt.Errorf("no task id to poll")
	}

	info, err := submitter.TaskInfo(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task info: %w", err)
	}

	s.mu.Lock()
	if generation == s.generation {
		s.taskInfo = info
	}
	s.mu.Unlock()

	if s.deps.Recorder != nil {
		if recErr := s.deps.Recorder.RecordTaskInfo(ctx, info); recErr != nil {
			common.LogWarn("Failed to record task info", common.Fields{"task_id": taskID, "error": recErr})
		}
	}
	return info, nil
}

// advance is the scan loop. It stops on a pending decision, at the item cap
// or when the feed is exhausted.
func (s *Session) advance() {
	if s.pendingID != "" {
		s.message = fmt.Sprintf(msgAwaiting, s.pendingID)
		return
	}

	for s.cursor < len(s.offers) && s.processed < s.params.MaxItems {
		offer := s.offers[s.cursor]

		if s.keyword != "" && !strings.Contains(cases.Fold().String(offer.Name), s.keyword) {
			s.filtered++
			s.cursor++
			continue
		}

		out := s.resolver.Resolve(offer)
		if out.State == model.StateAwaitingDecision {
			s.stats[out.State]++
			s.pendingID = out.Decision.ID
			s.message = fmt.Sprintf(msgAwaiting, s.pendingID)
			return
		}

		s.record(offer, out)
		s.cursor++
	}

	switch {
	case s.processed >= s.params.MaxItems:
		s.message = fmt.Sprintf(msgCapReached, s.params.MaxItems)
	case s.cursor >= len(s.offers):
		s.message = msgExhausted
	}
}

func (s *Session) record(offer model.Offer, out Outcome) {
	s.stats[out.State]++
	if out.Payload == nil {
		return
	}
	s.ready = append(s.ready, *out.Payload)
	s.processed++
	s.message = fmt.Sprintf(msgProcessed, s.processed)
	slog.Debug("Item ready", "offer_id", offer.ID, "state", out.State, "items_ready", s.processed)
}

// takePending checks id against the pending decision and consumes it. On
// error nothing is changed.
func (s *Session) takePending(id string) (model.PendingDecision, error) {
	if !s.initialized {
		return model.PendingDecision{}, ErrNotInitialized
	}
	if s.pendingID == "" || id != s.pendingID {
		slog.Warn("Decision id mismatch", "expected", s.pendingID, "received", id)
		return model.PendingDecision{}, fmt.Errorf("%w: got %q, pending %q", ErrDecisionMismatch, id, s.pendingID)
	}

	d, err := s.store.Take(id)
	if err != nil {
		return model.PendingDecision{}, err
	}
	s.pendingID = ""
	return d, nil
}

func (s *Session) clearRun() {
	s.store.Reset()
	s.generation++
	s.offers = nil
	s.ready = nil
	s.cursor = 0
	s.processed = 0
	s.filtered = 0
	s.pendingID = ""
	s.taskID = 0
	s.taskInfo = nil
	s.lastErr = ""
	s.submitting = false
	s.stats = make(map[model.ResolutionState]int)
}

func (s *Session) fail(message string, err error) {
	s.message = message
	s.lastErr = err.Error()
	slog.Error(message, "session_id", s.id, "error", err)
}

func (s *Session) backend() string {
	if s.deps.Matcher == nil {
		return ""
	}
	return s.deps.Matcher.Name()
}

func (s *Session) status() Status {
	st := Status{
		SessionID:         s.id,
		Message:           s.message,
		PendingDecisionID: s.pendingID,
		Processed:         s.processed,
		TotalToConsider:   max(len(s.offers)-s.params.Offset, 0),
		CurrentIndex:      s.cursor,
		ItemsReady:        len(s.ready),
		Filtered:          s.filtered,
		TaskID:            s.taskID,
		TaskInfo:          s.taskInfo,
		Error:             s.lastErr,
		Backend:           s.backend(),
		Initialized:       s.initialized,
		Submitting:        s.submitting,
		Stats:             make(map[model.ResolutionState]int, len(s.stats)),
	}
	for state, n := range s.stats {
		st.Stats[state] = n
	}

	if s.pendingID != "" {
		if d, err := s.store.Get(s.pendingID); err == nil {
			st.Decision = &DecisionDetails{
				ID:          d.ID,
				OfferID:     d.Offer.ID,
				Name:        d.Offer.Name,
				Suggestions: d.Suggestions(SuggestionCount),
				Similarity:  d.Similarity,
			}
		}
	}
	return st
}

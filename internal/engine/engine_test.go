package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/catalog-mapper/internal/decision"
	"github.com/Veraticus/catalog-mapper/internal/matcher"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/payload"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
	"github.com/Veraticus/catalog-mapper/internal/testutil/fixtures"
)

// fixedMatcher scores every leaf with the same similarity.
type fixedMatcher struct {
	similarity float64
	calls      int
}

func (m *fixedMatcher) Name() string { return "fixed" }

func (m *fixedMatcher) Rank(_ string, idx *taxonomy.Index) model.Candidates {
	m.calls++
	var out model.Candidates
	for _, leaf := range idx.Leaves() {
		out = append(out, model.NewCandidate(leaf, m.similarity))
	}
	return out.Ranked()
}

type harness struct {
	session   *Session
	submitter *MockSubmitter
	recorder  *MockRecorder
}

func newHarness(t *testing.T, root model.CategoryNode, m matcher.Matcher) *harness {
	t.Helper()
	if m == nil {
		m = matcher.NewSequence(matcher.DefaultNormalizer())
	}

	h := &harness{
		submitter: NewMockSubmitter(1000),
		recorder:  &MockRecorder{},
	}
	mgr, err := NewManager(Dependencies{
		Index:        taxonomy.New(root, taxonomy.Options{}),
		Matcher:      m,
		Builder:      payload.NewBuilder(payload.DefaultConfig()),
		NewSubmitter: h.submitter.Factory(),
		Recorder:     h.recorder,
	}, DefaultParams())
	require.NoError(t, err)

	h.session = mgr.Create()
	return h
}

func (h *harness) start(t *testing.T, req StartRequest) Status {
	t.Helper()
	st, err := h.session.Start(context.Background(), req)
	require.NoError(t, err)
	return st
}

func offers(names ...string) StaticSource {
	out := make(StaticSource, len(names))
	for i, name := range names {
		out[i] = fixtures.Offer(string(rune('a'+i)), name)
	}
	return out
}

func resolverFor(root model.CategoryNode, m matcher.Matcher, threshold float64) (*Resolver, *decision.Store) {
	store := decision.NewStore()
	if m == nil {
		m = matcher.NewSequence(matcher.DefaultNormalizer())
	}
	return NewResolver(taxonomy.New(root, taxonomy.Options{}), m, payload.NewBuilder(payload.Config{}), store, threshold), store
}

func TestResolver_AutoResolvesCloseMatch(t *testing.T) {
	r, store := resolverFor(fixtures.Fasteners(), nil, DefaultThreshold)

	out := r.Resolve(fixtures.Offer("1", "Гайка М10"))

	require.Equal(t, model.StateAutoResolved, out.State)
	require.NotNil(t, out.Payload)
	assert.Equal(t, int64(1), out.Payload.TypeID)
	assert.Equal(t, int64(10), out.Payload.DescriptionCategoryID)
	assert.Equal(t, 0, store.Len())
}

func TestResolver_PostsDecisionForPoorMatch(t *testing.T) {
	r, store := resolverFor(fixtures.Fasteners(), nil, DefaultThreshold)

	out := r.Resolve(fixtures.Offer("1", "Совершенно другой товар"))

	require.Equal(t, model.StateAwaitingDecision, out.State)
	require.NotNil(t, out.Decision)
	assert.Less(t, out.Decision.Similarity, 0.5)
	assert.NotEmpty(t, out.Decision.Candidates)
	assert.Equal(t, 1, store.Len())

	stored, err := store.Get(out.Decision.ID)
	require.NoError(t, err)
	assert.Equal(t, "Совершенно другой товар", stored.Offer.Name)
}

func TestResolver_ThresholdIsInclusive(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		want       model.ResolutionState
	}{
		{"exactly at threshold", 0.5, model.StateAutoResolved},
		{"just below", 0.4999, model.StateAwaitingDecision},
		{"above", 0.9, model.StateAutoResolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := resolverFor(fixtures.Fasteners(), &fixedMatcher{similarity: tt.similarity}, 0.5)
			assert.Equal(t, tt.want, r.Resolve(fixtures.Offer("1", "Гайка")).State)
		})
	}
}

func TestResolver_SkipStates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Offer)
		want   model.ResolutionState
	}{
		{"missing vendor code", func(o *model.Offer) { o.VendorCode = "" }, model.StateSkippedFieldMissing},
		{"missing count", func(o *model.Offer) { o.Count = "" }, model.StateSkippedFieldMissing},
		{"two dimensions", func(o *model.Offer) { o.Dimensions = "40/30" }, model.StateSkippedInvalid},
		{"four dimensions", func(o *model.Offer) { o.Dimensions = "40/30/10/5" }, model.StateSkippedInvalid},
		{"bad weight", func(o *model.Offer) { o.Weight = "тяжелый" }, model.StateSkippedInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fixedMatcher{similarity: 1}
			r, store := resolverFor(fixtures.Fasteners(), m, DefaultThreshold)

			offer := fixtures.Offer("1", "Гайка")
			tt.mutate(&offer)
			out := r.Resolve(offer)

			assert.Equal(t, tt.want, out.State)
			assert.Error(t, out.Err)
			assert.Nil(t, out.Payload)
			assert.Equal(t, 0, m.calls, "invalid offers are rejected before matching")
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestResolver_NoCandidates(t *testing.T) {
	r, store := resolverFor(fixtures.Fasteners(), nil, DefaultThreshold)

	// Latin and digits normalize to an empty query.
	out := r.Resolve(fixtures.Offer("1", "SD1234"))

	assert.Equal(t, model.StateSkippedNoCandidates, out.State)
	assert.Equal(t, 0, store.Len())
}

func TestResolver_MissingCategorySubstitutesTypeID(t *testing.T) {
	root := fixtures.NewTree().Group("Без категории").Leaf("Гайка", 7).End().Build()
	r, _ := resolverFor(root, &fixedMatcher{similarity: 1}, DefaultThreshold)

	out := r.Resolve(fixtures.Offer("1", "Гайка"))

	require.Equal(t, model.StateAutoResolved, out.State)
	assert.Equal(t, int64(7), out.Payload.DescriptionCategoryID)
}

func TestResolver_Finalize(t *testing.T) {
	r, _ := resolverFor(fixtures.Fasteners(), nil, DefaultThreshold)
	offer := fixtures.Offer("1", "Гайка")

	out := r.Finalize(offer, 5, nil)
	require.Equal(t, model.StateResolvedByDecision, out.State)
	assert.Equal(t, int64(5), out.Payload.DescriptionCategoryID)

	out = r.Finalize(offer, 5, model.Int64(10))
	assert.Equal(t, int64(10), out.Payload.DescriptionCategoryID)

	out = r.Finalize(offer, 0, nil)
	assert.Equal(t, model.StateSkippedInvalid, out.State)
	assert.ErrorIs(t, out.Err, payload.ErrInvalidCategory)
}

func TestSession_EndToEndResolve(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)

	st := h.start(t, StartRequest{Source: offers("Совершенно другой товар", "Гайка М10")})

	require.NotEmpty(t, st.PendingDecisionID)
	require.NotNil(t, st.Decision)
	assert.Equal(t, "a", st.Decision.OfferID)
	assert.NotEmpty(t, st.Decision.Suggestions)
	assert.LessOrEqual(t, len(st.Decision.Suggestions), SuggestionCount)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, 0, st.ItemsReady)
	assert.Contains(t, st.Message, st.PendingDecisionID)

	st, err := h.session.Resolve(st.PendingDecisionID, 1, model.Int64(10))
	require.NoError(t, err)

	assert.Empty(t, st.PendingDecisionID)
	assert.Equal(t, 2, st.CurrentIndex)
	assert.Equal(t, 2, st.ItemsReady)
	assert.Equal(t, 2, st.Processed)
	assert.Equal(t, msgExhausted, st.Message)
	assert.Equal(t, 1, st.Stats[model.StateResolvedByDecision])
	assert.Equal(t, 1, st.Stats[model.StateAutoResolved])

	h.session.mu.Lock()
	first := h.session.ready[0]
	h.session.mu.Unlock()
	assert.Equal(t, int64(1), first.TypeID)
	assert.Equal(t, int64(10), first.DescriptionCategoryID)
}

func TestSession_EndToEndSkip(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)

	st := h.start(t, StartRequest{Source: offers("Совершенно другой товар", "Гайка М10")})
	require.NotEmpty(t, st.PendingDecisionID)

	st, err := h.session.Skip(st.PendingDecisionID)
	require.NoError(t, err)

	assert.Empty(t, st.PendingDecisionID)
	assert.Equal(t, 2, st.CurrentIndex, "skip advances the scan like a resolution")
	assert.Equal(t, 1, st.ItemsReady)
	assert.Equal(t, 1, st.Stats[model.StateSkippedByUser])
	assert.Equal(t, 0, h.session.store.Len())
}

func TestSession_ResolveNilCategoryUsesTypeID(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	st := h.start(t, StartRequest{Source: offers("Совершенно другой товар")})

	_, err := h.session.Resolve(st.PendingDecisionID, 5, nil)
	require.NoError(t, err)

	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	require.Len(t, h.session.ready, 1)
	assert.Equal(t, int64(5), h.session.ready[0].TypeID)
	assert.Equal(t, int64(5), h.session.ready[0].DescriptionCategoryID)
}

func TestSession_AdvanceWhilePendingIsANoOp(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 0.1})
	st := h.start(t, StartRequest{Source: offers("Болт", "Шайба", "Гайка")})
	pending := st.PendingDecisionID
	require.NotEmpty(t, pending)

	for range 5 {
		again, err := h.session.Advance()
		require.NoError(t, err)
		assert.Equal(t, pending, again.PendingDecisionID)
		assert.Equal(t, 0, again.CurrentIndex)
		assert.Equal(t, 1, h.session.store.Len())
	}
}

func TestSession_RejectsWrongDecisionID(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 0.1})
	before := h.start(t, StartRequest{Source: offers("Болт", "Шайба")})

	_, err := h.session.Resolve("nope", 1, nil)
	assert.ErrorIs(t, err, ErrDecisionMismatch)
	_, err = h.session.Skip("")
	assert.ErrorIs(t, err, ErrDecisionMismatch)

	after := h.session.Status()
	assert.Equal(t, before.PendingDecisionID, after.PendingDecisionID)
	assert.Equal(t, before.CurrentIndex, after.CurrentIndex)
	assert.Equal(t, 1, h.session.store.Len())
}

func TestSession_RejectsDecisionWhenNothingPending(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 1})
	h.start(t, StartRequest{Source: offers("Гайка")})

	_, err := h.session.Resolve("a_12345678", 1, nil)
	assert.ErrorIs(t, err, ErrDecisionMismatch)
}

func TestSession_NotInitialized(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)

	_, err := h.session.Advance()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = h.session.Skip("x")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = h.session.TaskInfo(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, msgIdle, h.session.Status().Message)
}

func TestSession_NonPositiveChoiceSkipsOffer(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 0.1})
	st := h.start(t, StartRequest{Source: offers("Болт")})

	st, err := h.session.Resolve(st.PendingDecisionID, -1, nil)
	require.NoError(t, err)

	assert.Empty(t, st.PendingDecisionID)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.Equal(t, 0, st.ItemsReady)
	assert.Equal(t, 1, st.Stats[model.StateSkippedInvalid])
	assert.Equal(t, 0, h.session.store.Len())
}

func TestSession_StopsAtCap(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 1})
	limit := 2

	st := h.start(t, StartRequest{Source: offers("Гайка", "Гайка", "Гайка", "Гайка"), MaxItems: &limit})

	assert.Equal(t, 2, st.Processed)
	assert.Equal(t, 2, st.CurrentIndex)
	assert.Contains(t, st.Message, "maximum of 2")

	st, err := h.session.Advance()
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentIndex, "cap holds on further advances")
}

func TestSession_OffsetAndKeyword(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 1})
	offset := 1

	st := h.start(t, StartRequest{
		Source:  offers("Гайка первая", "Болт", "ГАЙКА вторая", "Шайба"),
		Offset:  &offset,
		Keyword: "гайка",
	})

	assert.Equal(t, 3, st.TotalToConsider)
	assert.Equal(t, 4, st.CurrentIndex)
	assert.Equal(t, 1, st.ItemsReady)
	assert.Equal(t, 2, st.Filtered)
	assert.Equal(t, msgExhausted, st.Message)
}

func TestSession_OffsetBeyondFeed(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	offset := 10

	st := h.start(t, StartRequest{Source: offers("Гайка"), Offset: &offset})

	assert.Equal(t, 0, st.TotalToConsider)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.Equal(t, msgExhausted, st.Message)
}

func TestSession_ScanContinuesPastSkips(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	source := offers("Гайка", "SD-1", "Гайка")
	source[0].Vendor = ""
	source[2].Dimensions = "1/2"

	st := h.start(t, StartRequest{Source: source})

	assert.Equal(t, 3, st.CurrentIndex)
	assert.Equal(t, 0, st.ItemsReady)
	assert.Equal(t, 1, st.Stats[model.StateSkippedFieldMissing])
	assert.Equal(t, 1, st.Stats[model.StateSkippedNoCandidates])
	assert.Equal(t, 1, st.Stats[model.StateSkippedInvalid])
}

func TestSession_ResetRestoresDefaults(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 0.1})
	limit := 1
	h.start(t, StartRequest{Source: offers("Болт"), MaxItems: &limit, Keyword: "болт"})
	require.Equal(t, 1, h.session.store.Len())

	st := h.session.Reset()

	assert.False(t, st.Initialized)
	assert.Empty(t, st.PendingDecisionID)
	assert.Equal(t, msgReset, st.Message)
	assert.Equal(t, 0, h.session.store.Len())
	assert.Equal(t, DefaultParams(), h.session.params)

	_, err := h.session.Advance()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSession_StartFailure(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)

	_, err := h.session.Start(context.Background(), StartRequest{Source: FailingSource{Err: errors.New("boom")}})
	require.Error(t, err)

	st := h.session.Status()
	assert.False(t, st.Initialized)
	assert.Equal(t, "boom", st.Error)

	_, err = h.session.Start(context.Background(), StartRequest{})
	assert.Error(t, err)
}

func TestSession_Submit(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	ctx := context.Background()

	st := h.start(t, StartRequest{Source: offers("Совершенно другой товар", "Гайка М10")})
	_, err := h.session.Submit(ctx)
	assert.ErrorIs(t, err, ErrPendingDecision)

	_, err = h.session.Skip(st.PendingDecisionID)
	require.NoError(t, err)

	taskID, err := h.session.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), taskID)
	require.Len(t, h.submitter.Submissions, 1)
	assert.Len(t, h.submitter.Submissions[0], 1)
	assert.Equal(t, h.submitter.Submissions[0], h.session.ReadyItems(), "ready items are kept after submit")

	require.Len(t, h.recorder.Submissions, 1)
	assert.Equal(t, h.session.ID(), h.recorder.Submissions[0].SessionID)
	assert.Equal(t, taskID, h.recorder.Submissions[0].TaskID)

	st = h.session.Status()
	assert.Equal(t, taskID, st.TaskID)
	assert.Contains(t, st.Message, "1000")

	info, err := h.session.TaskInfo(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, taskID, info.TaskID)
	assert.Equal(t, []int64{1000}, h.submitter.Polled)
	assert.Len(t, h.recorder.TaskInfos, 1)
	assert.Equal(t, info, h.session.Status().TaskInfo)
}

func TestSession_SubmitNothing(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	h.start(t, StartRequest{Source: offers()})

	_, err := h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestSession_SubmitFailure(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	h.submitter.SubmitErr = errors.New("no task id")
	h.start(t, StartRequest{Source: offers("Гайка")})

	_, err := h.session.Submit(context.Background())
	require.Error(t, err)

	st := h.session.Status()
	assert.Equal(t, msgSubmitFailed, st.Message)
	assert.Equal(t, "no task id", st.Error)
	assert.False(t, st.Submitting)
	assert.Empty(t, h.recorder.Submissions)
}

func TestSession_SubmitKeepsTaskIDWhenLaterChunkFails(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	h.submitter.PartialErr = context.Canceled
	h.start(t, StartRequest{Source: offers("Гайка")})

	taskID, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), taskID)

	st := h.session.Status()
	assert.Equal(t, int64(1000), st.TaskID)
	assert.Equal(t, "Submission interrupted. Last task ID: 1000", st.Message)
	assert.Equal(t, context.Canceled.Error(), st.Error)
	assert.False(t, st.Submitting)
	require.Len(t, h.recorder.Submissions, 1)
	assert.Equal(t, int64(1000), h.recorder.Submissions[0].TaskID)
}

func TestSession_StatusReadableDuringSubmit(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	h.submitter.Block = make(chan struct{})
	h.start(t, StartRequest{Source: offers("Гайка")})

	done := make(chan error, 1)
	go func() {
		_, err := h.session.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.session.Status().Submitting
	}, time.Second, 5*time.Millisecond)

	_, err := h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(h.submitter.Block)
	require.NoError(t, <-done)
	assert.False(t, h.session.Status().Submitting)
}

func TestSession_ResetDuringSubmitDropsResult(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), nil)
	h.submitter.Block = make(chan struct{})
	h.start(t, StartRequest{Source: offers("Гайка")})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.session.Submit(context.Background())
	}()

	require.Eventually(t, func() bool {
		return h.session.Status().Submitting
	}, time.Second, 5*time.Millisecond)

	h.session.Reset()
	close(h.submitter.Block)
	<-done

	st := h.session.Status()
	assert.Zero(t, st.TaskID)
	assert.Equal(t, msgReset, st.Message)
	assert.Empty(t, h.recorder.Submissions)
}

func TestSession_SingleFlightUnderConcurrency(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 0.1})
	st := h.start(t, StartRequest{Source: offers("Болт", "Шайба", "Винт", "Шуруп")})
	first := st.PendingDecisionID

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 20 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = h.session.Advance()
		}()
		go func() {
			defer wg.Done()
			_ = h.session.Status()
			assert.LessOrEqual(t, h.session.store.Len(), 1)
		}()
		go func() {
			defer wg.Done()
			if _, err := h.session.Skip(first); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	st = h.session.Status()
	assert.Equal(t, 1, st.CurrentIndex)
	assert.NotEqual(t, first, st.PendingDecisionID)
	assert.Equal(t, 1, h.session.store.Len())
}

func TestManager(t *testing.T) {
	_, err := NewManager(Dependencies{}, DefaultParams())
	assert.Error(t, err)

	h := newHarness(t, fixtures.Fasteners(), nil)
	mgr, err := NewManager(h.session.deps, DefaultParams())
	require.NoError(t, err)

	a := mgr.Create()
	b := mgr.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, mgr.IDs(), 2)

	got, err := mgr.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, mgr.Delete(a.ID()))
	_, err = mgr.Get(a.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, mgr.Delete(a.ID()), ErrSessionNotFound)
	assert.Equal(t, []string{b.ID()}, mgr.IDs())
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	h := newHarness(t, fixtures.Fasteners(), &fixedMatcher{similarity: 0.1})
	mgr, err := NewManager(h.session.deps, DefaultParams())
	require.NoError(t, err)

	a, b := mgr.Create(), mgr.Create()
	_, err = a.Start(context.Background(), StartRequest{Source: offers("Болт")})
	require.NoError(t, err)

	assert.NotEmpty(t, a.Status().PendingDecisionID)
	assert.Empty(t, b.Status().PendingDecisionID)
	assert.False(t, b.Status().Initialized)
}

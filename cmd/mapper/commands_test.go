package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/catalog-mapper/internal/cli"
	"github.com/Veraticus/catalog-mapper/internal/config"
	"github.com/Veraticus/catalog-mapper/internal/engine"
	"github.com/Veraticus/catalog-mapper/internal/feed"
	"github.com/Veraticus/catalog-mapper/internal/matcher"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/payload"
	"github.com/Veraticus/catalog-mapper/internal/storage"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
	"github.com/Veraticus/catalog-mapper/internal/testutil/fixtures"
)

func startReview(t *testing.T, offers ...model.Offer) (*engine.Session, *taxonomy.Index, engine.Status) {
	t.Helper()

	idx := taxonomy.New(fixtures.Fasteners(), taxonomy.Options{})
	mgr, err := engine.NewManager(engine.Dependencies{
		Index:   idx,
		Matcher: matcher.NewSequence(matcher.DefaultNormalizer()),
		Builder: payload.NewBuilder(payload.DefaultConfig()),
	}, engine.DefaultParams())
	require.NoError(t, err)

	session := mgr.Create()
	st, err := session.Start(context.Background(), engine.StartRequest{Source: engine.StaticSource(offers)})
	require.NoError(t, err)
	return session, idx, st
}

func TestReviewLoop_PicksSuggestion(t *testing.T) {
	session, idx, st := startReview(t,
		fixtures.Offer("1", "Гайка"),
		fixtures.Offer("2", "Совершенно другой товар"),
	)
	require.NotNil(t, st.Decision)

	prompter := cli.NewPrompter(strings.NewReader("1\n"), &bytes.Buffer{}, 0.5)
	st, err := reviewLoop(context.Background(), session, prompter, idx, st)
	require.NoError(t, err)

	assert.Nil(t, st.Decision)
	assert.Equal(t, 2, st.ItemsReady)
	assert.Equal(t, 1, st.Stats[model.StateResolvedByDecision])

	items := session.ReadyItems()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[1].TypeID)
	assert.Equal(t, int64(10), items[1].DescriptionCategoryID)
}

func TestReviewLoop_UnknownCustomTypeIsConfirmed(t *testing.T) {
	session, idx, st := startReview(t, fixtures.Offer("2", "Совершенно другой товар"))

	input := strings.Join([]string{"0", "999", "", "n", "s"}, "\n") + "\n"
	prompter := cli.NewPrompter(strings.NewReader(input), &bytes.Buffer{}, 0.5)

	st, err := reviewLoop(context.Background(), session, prompter, idx, st)
	require.NoError(t, err)
	assert.Equal(t, 0, st.ItemsReady)
	assert.Equal(t, 1, st.Stats[model.StateSkippedByUser])
}

func TestReviewLoop_AcceptedCustomType(t *testing.T) {
	session, idx, st := startReview(t, fixtures.Offer("2", "Совершенно другой товар"))

	input := strings.Join([]string{"0", "999", "55", "y"}, "\n") + "\n"
	prompter := cli.NewPrompter(strings.NewReader(input), &bytes.Buffer{}, 0.5)

	st, err := reviewLoop(context.Background(), session, prompter, idx, st)
	require.NoError(t, err)
	require.Equal(t, 1, st.ItemsReady)

	item := session.ReadyItems()[0]
	assert.Equal(t, int64(999), item.TypeID)
	assert.Equal(t, int64(55), item.DescriptionCategoryID)
}

func TestReviewLoop_InputEndsKeepsStatus(t *testing.T) {
	session, idx, st := startReview(t, fixtures.Offer("2", "Совершенно другой товар"))

	prompter := cli.NewPrompter(strings.NewReader(""), &bytes.Buffer{}, 0.5)
	got, err := reviewLoop(context.Background(), session, prompter, idx, st)

	assert.ErrorIs(t, err, cli.ErrInputClosed)
	assert.Equal(t, st.PendingDecisionID, got.PendingDecisionID)
}

func TestWriteItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "items.json")

	require.NoError(t, writeItems(path, nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items": []}`, string(data))

	items := []model.ListingPayload{{OfferID: "Sangsin_SD1", TypeID: 1}}
	require.NoError(t, writeItems(path, items))
	data, err = os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Items []model.ListingPayload `json:"items"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Sangsin_SD1", decoded.Items[0].OfferID)
}

func TestOfferSource(t *testing.T) {
	s := &config.Settings{Feed: config.FeedSettings{Path: "/tmp/feed.xml"}}

	assert.Equal(t, feed.FileSource{Path: "/tmp/feed.xml"}, offerSource(s, ""))

	remote, ok := offerSource(s, "https://example.com/feed.xml").(*feed.HTTPSource)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/feed.xml", remote.URL)
	assert.Equal(t, "/tmp/feed.xml", remote.CachePath)

	s.Feed.URL = "https://example.com/configured.xml"
	remote, ok = offerSource(s, "").(*feed.HTTPSource)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/configured.xml", remote.URL)
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}, {"y", "z"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "z")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestRenderTaskInfo(t *testing.T) {
	info := &model.TaskInfo{
		TaskID: 77,
		Total:  2,
		Items: []model.TaskItemStatus{
			{OfferID: "a", Status: "imported", ProductID: 123},
			{OfferID: "b", Status: "failed", Errors: []model.TaskItemError{
				{Code: "E1", Message: "bad barcode"},
				{Code: "E2"},
			}},
		},
	}

	out := renderTaskInfo(info)
	assert.Contains(t, out, "Task 77")
	assert.Contains(t, out, "123")
	assert.Contains(t, out, "bad barcode (+1 more)")
	assert.Contains(t, out, "failed: 1, imported: 1")
}

func TestSummarizeErrors(t *testing.T) {
	assert.Empty(t, summarizeErrors(nil))
	assert.Equal(t, "E1", summarizeErrors([]model.TaskItemError{{Code: "E1"}}))
	assert.Equal(t, "desc", summarizeErrors([]model.TaskItemError{{Code: "E1", Description: "desc"}}))
}

func TestRenderSubmissions(t *testing.T) {
	out := renderSubmissions([]storage.SubmissionSummary{{
		TaskID:      42,
		SessionID:   "s-1",
		SubmittedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		ItemCount:   3,
		Checked:     3,
		Imported:    2,
		Failed:      1,
	}})
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "s-1")

	items := renderSubmissionItems(
		[]storage.SubmittedItem{{OfferID: "a", Name: "Гайка", TypeID: 1, DescriptionCategoryID: 10}, {OfferID: "b"}},
		[]storage.TaskItemRecord{{OfferID: "a", Status: "imported"}},
	)
	assert.Contains(t, items, "imported")
	assert.Contains(t, items, "unchecked")
}

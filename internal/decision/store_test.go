package decision

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/testutil/fixtures"
)

func pending(id string) model.PendingDecision {
	return model.PendingDecision{
		ID:         id,
		Offer:      fixtures.Offer("1", "Совершенно другой товар"),
		Candidates: model.Candidates{{TypeName: "Гайка", TypeID: 1, Similarity: 0.2}},
		Similarity: 0.2,
		CreatedAt:  time.Now(),
	}
}

func TestNewID(t *testing.T) {
	tests := []struct {
		offerID string
		prefix  string
	}{
		{"12345", "12345_"},
		{"a/b c", "a%2Fb%20c_"},
		{"", "unknown_"},
	}

	for _, tt := range tests {
		t.Run(tt.offerID, func(t *testing.T) {
			id := NewID(tt.offerID)
			assert.Regexp(t, "^"+regexp.QuoteMeta(tt.prefix)+"[0-9a-f]{8}$", id)
		})
	}
}

func TestNewID_RepeatedOfferIDsAreDistinct(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		id := NewID("same")
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestStore_InsertOnceTakeOnce(t *testing.T) {
	s := NewStore()
	d := pending("1_abcdef12")

	require.NoError(t, s.Put(d))
	assert.ErrorIs(t, s.Put(d), ErrDuplicateDecision)
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Offer, got.Offer)
	assert.Equal(t, 1, s.Len(), "Get does not consume")

	taken, err := s.Take(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, taken.ID)
	assert.Equal(t, 0, s.Len())

	_, err = s.Take(d.ID)
	assert.ErrorIs(t, err, ErrDecisionNotFound)
	_, err = s.Get(d.ID)
	assert.ErrorIs(t, err, ErrDecisionNotFound)
}

func TestStore_RejectsEmptyID(t *testing.T) {
	assert.Error(t, NewStore().Put(pending("")))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(pending("x")))

	got, err := s.Get("x")
	require.NoError(t, err)
	got.Candidates[0].TypeName = "changed"

	again, err := s.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "Гайка", again.Candidates[0].TypeName)
}

func TestStore_ResetAndIDs(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(pending("b")))
	require.NoError(t, s.Put(pending("a")))
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.IDs())
}

func TestStore_ConcurrentTakeSucceedsOnce(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(pending("race")))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Take("race"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrDecisionNotFound, fmt.Sprintf("goroutine %d", i))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
}

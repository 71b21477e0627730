package session

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/kbc-quiz/internal/storage"
)

func newTestStore() (*Store, *storage.Memory) {
	kv := storage.NewMemory()
	return NewStore(kv, "", zerolog.New(io.Discard)), kv
}

func TestInitializeDefaults(t *testing.T) {
	store, _ := newTestStore()

	st, err := store.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultState(), st)
	assert.Equal(t, 1, st.CurrentBatch)
	assert.Empty(t, st.UsedQuestionIDs)
	assert.False(t, st.Resumable())
}

func TestInitializeReadsPersistedLayout(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		"kbc_quiz_used_questions":         "[1,2,3]",
		"kbc_quiz_score":                  "2",
		"kbc_quiz_current_batch":          "3",
		"kbc_quiz_current_question_index": "1",
		"kbc_quiz_batch_questions":        "[1,2,3]",
		"kbc_quiz_is_batch_complete":      "false",
		"kbc_quiz_used_lifelines":         `["audience-poll","fifty-fifty"]`,
		"kbc_quiz_batch_score":            "1",
	}))

	st, err := store.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, NewIDSet(1, 2, 3), st.UsedQuestionIDs)
	assert.Equal(t, 2, st.Score)
	assert.Equal(t, 3, st.CurrentBatch)
	assert.Equal(t, 1, st.CurrentQuestionIndex)
	assert.Equal(t, []int{1, 2, 3}, st.BatchQuestionIDs)
	assert.False(t, st.IsBatchComplete)
	assert.Equal(t, NewLifelineSet(LifelineFiftyFifty, LifelineAudiencePoll), st.UsedLifelines)
	assert.Equal(t, 1, st.BatchScore)
	assert.True(t, st.Resumable())
}

func TestInitializeTreatsCorruptValuesAsAbsent(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()
	require.NoError(t, kv.SetMany(ctx, map[string]string{
		"kbc_quiz_used_questions":         "{not json",
		"kbc_quiz_score":                  "-4",
		"kbc_quiz_current_batch":          "0",
		"kbc_quiz_current_question_index": "abc",
		"kbc_quiz_batch_questions":        `["x"]`,
		"kbc_quiz_is_batch_complete":      "maybe",
		"kbc_quiz_used_lifelines":         `["fifty-fifty","ask-the-host"]`,
	}))

	st, err := store.Initialize(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.UsedQuestionIDs)
	assert.Equal(t, 0, st.Score)
	assert.Equal(t, 1, st.CurrentBatch)
	assert.Equal(t, 0, st.CurrentQuestionIndex)
	assert.Empty(t, st.BatchQuestionIDs)
	assert.False(t, st.IsBatchComplete)
	assert.Equal(t, NewLifelineSet(LifelineFiftyFifty), st.UsedLifelines, "unknown lifelines are dropped")
}

func TestFieldSavesAreIndependent(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.SaveScore(ctx, 4))
	require.NoError(t, store.SaveCurrentBatch(ctx, 2))
	require.NoError(t, store.SaveCurrentQuestionIndex(ctx, 7))
	require.NoError(t, store.SaveBatchQuestionIDs(ctx, []int{11, 12}))
	require.NoError(t, store.SaveBatchComplete(ctx, true))
	require.NoError(t, store.SaveUsedLifelines(ctx, NewLifelineSet(LifelinePhoneFriend)))
	require.NoError(t, store.SaveBatchScore(ctx, 3))
	require.NoError(t, store.SaveUsedQuestionIDs(ctx, NewIDSet(12, 11)))

	raw, _, _ := kv.Get(ctx, "kbc_quiz_is_batch_complete")
	assert.Equal(t, "true", raw)
	raw, _, _ = kv.Get(ctx, "kbc_quiz_used_questions")
	assert.Equal(t, "[11,12]", raw)
	raw, _, _ = kv.Get(ctx, "kbc_quiz_used_lifelines")
	assert.Equal(t, `["phone-friend"]`, raw)

	require.NoError(t, store.SaveScore(ctx, 5))
	st, err := store.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, st.Score)
	assert.Equal(t, 2, st.CurrentBatch, "overwriting one field leaves the others intact")
	assert.Equal(t, 7, st.CurrentQuestionIndex)
	assert.True(t, st.IsBatchComplete)
	assert.Equal(t, 3, st.BatchScore)

	require.NoError(t, store.ResetUsedLifelines(ctx))
	st, err = store.Initialize(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.UsedLifelines)
}

func TestMarkQuestionsUsedIsIdempotent(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	used, err := store.MarkQuestionsUsed(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, used, 3)

	used, err = store.MarkQuestionsUsed(ctx, []int{3, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, NewIDSet(1, 2, 3, 4), used)

	st, err := store.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, NewIDSet(1, 2, 3, 4), st.UsedQuestionIDs)
}

func TestSaveThenResetYieldsDefaults(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	st := DefaultState()
	st.UsedQuestionIDs.Add(1, 2)
	st.Score = 2
	st.CurrentBatch = 4
	st.BatchQuestionIDs = []int{1, 2}
	st.UsedLifelines = NewLifelineSet(LifelineFiftyFifty)
	require.NoError(t, store.Save(ctx, st))
	assert.Equal(t, 8, kv.Len())

	got, err := store.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, 0, kv.Len())

	got, err = store.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultState(), got)
}

func TestCustomPrefix(t *testing.T) {
	kv := storage.NewMemory()
	store := NewStore(kv, "p1_", zerolog.New(io.Discard))
	require.NoError(t, store.SaveScore(context.Background(), 9))

	_, ok, _ := kv.Get(context.Background(), "p1_score")
	assert.True(t, ok)
}

type failingKV struct{ storage.Memory }

func (f *failingKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("down")
}

func TestInitializeReportsBackendErrors(t *testing.T) {
	store := NewStore(&failingKV{}, "", zerolog.New(io.Discard))

	st, err := store.Initialize(context.Background())
	assert.Error(t, err)
	assert.Equal(t, DefaultState(), st, "defaults are still returned")
}

func TestHasRemaining(t *testing.T) {
	tests := []struct {
		name string
		used int
		size int
		want bool
	}{
		{"fresh", 0, 50, true},
		{"one batch in", 10, 50, true},
		{"last question", 49, 50, true},
		{"exhausted", 50, 50, false},
		{"over", 51, 50, false},
		{"smaller bank", 20, 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used := IDSet{}
			for i := 0; i < tt.used; i++ {
				used.Add(i)
			}
			assert.Equal(t, tt.want, HasRemaining(used, tt.size))
		})
	}
}

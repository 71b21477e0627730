package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/storage"
)

// DefaultKeyPrefix namespaces every persisted key.
const DefaultKeyPrefix = "kbc_quiz_"

type keySet struct {
	usedQuestions   string
	score           string
	currentBatch    string
	questionIndex   string
	batchQuestions  string
	isBatchComplete string
	usedLifelines   string
	batchScore      string
}

func newKeySet(prefix string) keySet {
	return keySet{
		usedQuestions:   prefix + "used_questions",
		score:           prefix + "score",
		currentBatch:    prefix + "current_batch",
		questionIndex:   prefix + "current_question_index",
		batchQuestions:  prefix + "batch_questions",
		isBatchComplete: prefix + "is_batch_complete",
		usedLifelines:   prefix + "used_lifelines",
		batchScore:      prefix + "batch_score",
	}
}

func (k keySet) all() []string {
	return []string{
		k.usedQuestions, k.score, k.currentBatch, k.questionIndex,
		k.batchQuestions, k.isBatchComplete, k.usedLifelines, k.batchScore,
	}
}

// Store persists State fields as individual string values in a KV bag.
type Store struct {
	kv     storage.KV
	keys   keySet
	logger zerolog.Logger
}

// NewStore builds a Store. An empty prefix falls back to DefaultKeyPrefix.
func NewStore(kv storage.KV, prefix string, logger zerolog.Logger) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{
		kv:     kv,
		keys:   newKeySet(prefix),
		logger: logger.With().Str("component", "session_store").Logger(),
	}
}

// Initialize reads every field. Absent or corrupt values are replaced by defaults.
func (s *Store) Initialize(ctx context.Context) (State, error) {
	st := DefaultState()

	raw, err := s.read(ctx)
	if err != nil {
		return st, err
	}

	if v, ok := raw[s.keys.usedQuestions]; ok {
		if ids, ok := s.decodeInts(s.keys.usedQuestions, v); ok {
			st.UsedQuestionIDs = NewIDSet(ids...)
		}
	}
	if v, ok := raw[s.keys.score]; ok {
		st.Score = s.decodeInt(s.keys.score, v, 0, 0)
	}
	if v, ok := raw[s.keys.currentBatch]; ok {
		st.CurrentBatch = s.decodeInt(s.keys.currentBatch, v, 1, 1)
	}
	if v, ok := raw[s.keys.questionIndex]; ok {
		st.CurrentQuestionIndex = s.decodeInt(s.keys.questionIndex, v, 0, 0)
	}
	if v, ok := raw[s.keys.batchQuestions]; ok {
		if ids, ok := s.decodeInts(s.keys.batchQuestions, v); ok {
			st.BatchQuestionIDs = ids
		}
	}
	if v, ok := raw[s.keys.isBatchComplete]; ok {
		var done bool
		if err := json.Unmarshal([]byte(v), &done); err != nil {
			s.corrupt(s.keys.isBatchComplete, v, err)
		} else {
			st.IsBatchComplete = done
		}
	}
	if v, ok := raw[s.keys.usedLifelines]; ok {
		var names []string
		if err := json.Unmarshal([]byte(v), &names); err != nil {
			s.corrupt(s.keys.usedLifelines, v, err)
		} else {
			for _, n := range names {
				if l := Lifeline(n); l.Valid() {
					st.UsedLifelines[l] = struct{}{}
				}
			}
		}
	}
	if v, ok := raw[s.keys.batchScore]; ok {
		st.BatchScore = s.decodeInt(s.keys.batchScore, v, 0, 0)
	}
	return st, nil
}

// Save writes every field in one atomic multi-set.
func (s *Store) Save(ctx context.Context, st State) error {
	values := map[string]string{
		s.keys.usedQuestions:   encodeInts(st.UsedQuestionIDs.Sorted()),
		s.keys.score:           strconv.Itoa(st.Score),
		s.keys.currentBatch:    strconv.Itoa(st.CurrentBatch),
		s.keys.questionIndex:   strconv.Itoa(st.CurrentQuestionIndex),
		s.keys.batchQuestions:  encodeInts(st.BatchQuestionIDs),
		s.keys.isBatchComplete: strconv.FormatBool(st.IsBatchComplete),
		s.keys.usedLifelines:   encodeLifelines(st.UsedLifelines),
		s.keys.batchScore:      strconv.Itoa(st.BatchScore),
	}
	if err := s.kv.SetMany(ctx, values); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) SaveUsedQuestionIDs(ctx context.Context, ids IDSet) error {
	return s.set(ctx, s.keys.usedQuestions, encodeInts(ids.Sorted()))
}

func (s *Store) SaveScore(ctx context.Context, score int) error {
	return s.set(ctx, s.keys.score, strconv.Itoa(score))
}

func (s *Store) SaveCurrentBatch(ctx context.Context, batch int) error {
	return s.set(ctx, s.keys.currentBatch, strconv.Itoa(batch))
}

func (s *Store) SaveCurrentQuestionIndex(ctx context.Context, index int) error {
	return s.set(ctx, s.keys.questionIndex, strconv.Itoa(index))
}

func (s *Store) SaveBatchQuestionIDs(ctx context.Context, ids []int) error {
	return s.set(ctx, s.keys.batchQuestions, encodeInts(ids))
}

func (s *Store) SaveBatchComplete(ctx context.Context, complete bool) error {
	return s.set(ctx, s.keys.isBatchComplete, strconv.FormatBool(complete))
}

func (s *Store) SaveUsedLifelines(ctx context.Context, used LifelineSet) error {
	return s.set(ctx, s.keys.usedLifelines, encodeLifelines(used))
}

func (s *Store) SaveBatchScore(ctx context.Context, score int) error {
	return s.set(ctx, s.keys.batchScore, strconv.Itoa(score))
}

// ResetUsedLifelines removes the lifelines key so the next read yields an empty set.
func (s *Store) ResetUsedLifelines(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.keys.usedLifelines); err != nil {
		return fmt.Errorf("reset lifelines: %w", err)
	}
	return nil
}

// MarkQuestionsUsed unions ids into the persisted used set and returns the result.
func (s *Store) MarkQuestionsUsed(ctx context.Context, ids []int) (IDSet, error) {
	used := IDSet{}
	v, ok, err := s.kv.Get(ctx, s.keys.usedQuestions)
	if err != nil {
		return nil, fmt.Errorf("read used questions: %w", err)
	}
	if ok {
		if prev, ok := s.decodeInts(s.keys.usedQuestions, v); ok {
			used.Add(prev...)
		}
	}
	used.Add(ids...)
	if err := s.SaveUsedQuestionIDs(ctx, used); err != nil {
		return nil, err
	}
	return used, nil
}

// Reset deletes every persisted key.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.keys.all()...); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

func (s *Store) read(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.keys.all()))
	for _, key := range s.keys.all() {
		v, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if ok {
			out[key] = v
		}
	}
	return out, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	if err := storage.Set(ctx, s.kv, key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) decodeInts(key, v string) ([]int, bool) {
	var ids []int
	if err := json.Unmarshal([]byte(v), &ids); err != nil {
		s.corrupt(key, v, err)
		return nil, false
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, true
}

// decodeInt parses a decimal counter; values below floor are corrupt.
func (s *Store) decodeInt(key, v string, floor, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		s.corrupt(key, v, err)
		return def
	}
	if n < floor {
		s.corrupt(key, v, fmt.Errorf("value below %d", floor))
		return def
	}
	return n
}

func (s *Store) corrupt(key, v string, err error) {
	s.logger.Warn().Err(err).Str("key", key).Str("value", v).Msg("ignoring corrupt session value")
}

func encodeInts(ids []int) string {
	if ids == nil {
		ids = []int{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func encodeLifelines(used LifelineSet) string {
	data, _ := json.Marshal(used.Sorted())
	return string(data)
}

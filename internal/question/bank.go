package question

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed bank.json
var defaultBank []byte

// Bank is a fixed, ordered question collection. It is read-only after construction.
type Bank struct {
	questions []Question
	byID      map[int]int
}

var _ Source = (*Bank)(nil)

// NewBank validates questions and builds a bank preserving their order.
func NewBank(questions []Question) (*Bank, error) {
	byID := make(map[int]int, len(questions))
	for i, q := range questions {
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id", q.ID)
		}
		if len(q.Options) != OptionCount {
			return nil, fmt.Errorf("question %d: want %d options, got %d", q.ID, OptionCount, len(q.Options))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= OptionCount {
			return nil, fmt.Errorf("question %d: correct answer %d out of range", q.ID, q.CorrectAnswer)
		}
		byID[q.ID] = i
	}
	cp := make([]Question, len(questions))
	copy(cp, questions)
	return &Bank{questions: cp, byID: byID}, nil
}

// Default returns the bank compiled into the binary.
func Default() (*Bank, error) {
	return decode(defaultBank)
}

// Load reads a JSON array of questions from path. An empty path yields Default.
func Load(path string) (*Bank, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*Bank, error) {
	var qs []Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	return NewBank(qs)
}

// All returns a copy of every question in bank order.
func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Size is the number of questions in the bank.
func (b *Bank) Size() int {
	return len(b.questions)
}

// SequentialUnused scans the bank in order and returns up to n questions whose ids
// are not in exclude.
func (b *Bank) SequentialUnused(n int, exclude map[int]struct{}) []Question {
	if n <= 0 {
		return nil
	}
	out := make([]Question, 0, n)
	for _, q := range b.questions {
		if _, used := exclude[q.ID]; used {
			continue
		}
		out = append(out, q)
		if len(out) == n {
			break
		}
	}
	return out
}

// Lookup resolves ids in the given order. ok is false if any id is unknown.
func (b *Bank) Lookup(ids []int) ([]Question, bool) {
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		idx, found := b.byID[id]
		if !found {
			return nil, false
		}
		out = append(out, b.questions[idx])
	}
	return out, true
}

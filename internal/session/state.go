package session

import (
	"encoding/json"
	"sort"
)

// Lifeline names a one-per-batch aid.
type Lifeline string

const (
	LifelineFiftyFifty   Lifeline = "fifty-fifty"
	LifelinePhoneFriend  Lifeline = "phone-friend"
	LifelineAudiencePoll Lifeline = "audience-poll"
)

// Lifelines lists every known kind in display order.
var Lifelines = []Lifeline{LifelineFiftyFifty, LifelinePhoneFriend, LifelineAudiencePoll}

// Valid reports whether l is one of the known kinds.
func (l Lifeline) Valid() bool {
	switch l {
	case LifelineFiftyFifty, LifelinePhoneFriend, LifelineAudiencePoll:
		return true
	}
	return false
}

// IDSet is a set of question ids. It encodes as a sorted JSON array.
type IDSet map[int]struct{}

func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	s.Add(ids...)
	return s
}

func (s IDSet) Add(ids ...int) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// LifelineSet holds the lifelines consumed in the active batch.
type LifelineSet map[Lifeline]struct{}

func NewLifelineSet(ls ...Lifeline) LifelineSet {
	s := make(LifelineSet, len(ls))
	for _, l := range ls {
		s[l] = struct{}{}
	}
	return s
}

func (s LifelineSet) Has(l Lifeline) bool {
	_, ok := s[l]
	return ok
}

func (s LifelineSet) Clone() LifelineSet {
	out := make(LifelineSet, len(s))
	for l := range s {
		out[l] = struct{}{}
	}
	return out
}

// Sorted returns the lifelines in display order.
func (s LifelineSet) Sorted() []Lifeline {
	out := make([]Lifeline, 0, len(s))
	for _, l := range Lifelines {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

func (s LifelineSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// State is the persisted quiz progress for the single player.
type State struct {
	UsedQuestionIDs      IDSet       `json:"usedQuestionIds"`
	Score                int         `json:"score"`
	CurrentBatch         int         `json:"currentBatch"`
	CurrentQuestionIndex int         `json:"currentQuestionIndex"`
	BatchQuestionIDs     []int       `json:"batchQuestionIds"`
	IsBatchComplete      bool        `json:"isBatchComplete"`
	UsedLifelines        LifelineSet `json:"usedLifelines"`
	BatchScore           int         `json:"batchScore"`
}

// DefaultState is what a fresh or reset session looks like.
func DefaultState() State {
	return State{
		UsedQuestionIDs:  IDSet{},
		CurrentBatch:     1,
		BatchQuestionIDs: []int{},
		UsedLifelines:    LifelineSet{},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.UsedQuestionIDs = s.UsedQuestionIDs.Clone()
	out.UsedLifelines = s.UsedLifelines.Clone()
	out.BatchQuestionIDs = append([]int{}, s.BatchQuestionIDs...)
	return out
}

// Resumable reports whether a batch was loaded and left unfinished.
func (s State) Resumable() bool {
	return len(s.BatchQuestionIDs) > 0 && !s.IsBatchComplete
}

// HasRemaining reports whether the bank still holds questions not yet served.
func HasRemaining(used IDSet, bankSize int) bool {
	return len(used) < bankSize
}

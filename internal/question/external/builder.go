package external

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/question"
)

// RawQuestion is a provider question before it is shaped into a bank entry.
type RawQuestion struct {
	Prompt    string
	Correct   string
	Incorrect []string
}

// Provider fetches raw multiple-choice questions from a trivia source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, amount int) ([]RawQuestion, error)
}

// ErrShortFetch means the provider stopped returning new usable questions.
var ErrShortFetch = errors.New("provider returned too few usable questions")

// maxFetch is the largest page any supported provider serves.
const maxFetch = 50

// BuildBank pulls questions from p until it has amount usable, de-duplicated entries and
// numbers them from 1. The correct option lands at a random position.
func BuildBank(ctx context.Context, p Provider, amount int, rng *rand.Rand, logger zerolog.Logger) ([]question.Question, error) {
	out := make([]question.Question, 0, amount)
	seen := make(map[string]struct{}, amount)
	stalls := 0

	for len(out) < amount {
		want := amount - len(out)
		if want > maxFetch {
			want = maxFetch
		}
		raw, err := p.Fetch(ctx, want)
		if err != nil {
			return nil, fmt.Errorf("%s fetch: %w", p.Name(), err)
		}

		added := 0
		for _, r := range raw {
			if len(out) == amount {
				break
			}
			q, ok := shape(r, len(out)+1, rng)
			if !ok {
				continue
			}
			key := strings.ToLower(q.Question)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, q)
			added++
		}
		logger.Debug().Str("provider", p.Name()).Int("fetched", len(raw)).Int("added", added).Int("total", len(out)).Msg("bank page")

		if added == 0 {
			stalls++
			if stalls >= 3 {
				return nil, fmt.Errorf("%s: %w (have %d of %d)", p.Name(), ErrShortFetch, len(out), amount)
			}
			continue
		}
		stalls = 0
	}
	return out, nil
}

// shape turns r into a four-option question. Questions without exactly three distinct
// wrong answers are skipped.
func shape(r RawQuestion, id int, rng *rand.Rand) (question.Question, bool) {
	prompt := strings.TrimSpace(r.Prompt)
	correct := strings.TrimSpace(r.Correct)
	if prompt == "" || correct == "" || len(r.Incorrect) != question.OptionCount-1 {
		return question.Question{}, false
	}
	options := make([]string, 0, question.OptionCount)
	distinct := map[string]struct{}{strings.ToLower(correct): {}}
	for _, w := range r.Incorrect {
		w = strings.TrimSpace(w)
		if _, dup := distinct[strings.ToLower(w)]; dup || w == "" {
			return question.Question{}, false
		}
		distinct[strings.ToLower(w)] = struct{}{}
		options = append(options, w)
	}

	pos := rng.Intn(question.OptionCount)
	options = append(options, "")
	copy(options[pos+1:], options[pos:])
	options[pos] = correct

	return question.Question{
		ID:            id,
		Question:      prompt,
		Options:       options,
		CorrectAnswer: pos,
	}, true
}

package quiz

import (
	"errors"
	"time"

	"github.com/gokatarajesh/kbc-quiz/internal/session"
)

// Phase is the controller's position in the quiz loop.
type Phase string

const (
	PhaseLanding       Phase = "landing"
	PhaseLoading       Phase = "loading"
	PhasePresenting    Phase = "presenting"
	PhaseFeedback      Phase = "feedback"
	PhaseBatchComplete Phase = "batch_complete"
	PhaseFinished      Phase = "finished"
)

const (
	DefaultBatchSize             = 10
	DefaultFeedbackDelay         = 1500 * time.Millisecond
	DefaultPhoneFriendConfidence = 0.8
)

var (
	ErrNotPresenting   = errors.New("no question is awaiting an answer")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrInvalidOption   = errors.New("option index out of range")
	ErrOptionHidden    = errors.New("option removed by fifty-fifty")
	ErrUnknownLifeline = errors.New("unknown lifeline")
	ErrLifelineUsed    = errors.New("lifeline already used in this batch")
	ErrNoNextBatch     = errors.New("next batch not available")
)

// Feedback describes the outcome of an answer.
type Feedback struct {
	QuestionID    int  `json:"questionId"`
	Selected      int  `json:"selected"`
	CorrectAnswer int  `json:"correctAnswer"`
	Correct       bool `json:"correct"`
}

// PhoneFriendHint is the friend's suggested option.
type PhoneFriendHint struct {
	Suggested  int `json:"suggested"`
	Confidence int `json:"confidence"`
}

// LifelineResult carries the effect of an activated lifeline.
type LifelineResult struct {
	Kind         session.Lifeline `json:"kind"`
	Hidden       []int            `json:"hidden,omitempty"`
	PhoneFriend  *PhoneFriendHint `json:"phoneFriend,omitempty"`
	AudiencePoll []int            `json:"audiencePoll,omitempty"`
}

// QuestionView is a question as shown to the player. The answer is revealed only in feedback.
type QuestionView struct {
	ID      int      `json:"id"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// Summary is shown when a batch ends or the bank runs out.
type Summary struct {
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
	HasMore    bool   `json:"hasMore"`
}

// View is an immutable snapshot of everything the presentation layer renders.
type View struct {
	Phase          Phase              `json:"phase"`
	Batch          int                `json:"batch"`
	Score          int                `json:"score"`
	BatchScore     int                `json:"batchScore"`
	QuestionNumber int                `json:"questionNumber"`
	BatchLength    int                `json:"batchLength"`
	Question       *QuestionView      `json:"question,omitempty"`
	Hidden         []int              `json:"hidden,omitempty"`
	UsedLifelines  []session.Lifeline `json:"usedLifelines"`
	Feedback       *Feedback          `json:"feedback,omitempty"`
	PhoneFriend    *PhoneFriendHint   `json:"phoneFriend,omitempty"`
	AudiencePoll   []int              `json:"audiencePoll,omitempty"`
	Summary        *Summary           `json:"summary,omitempty"`
	HasRemaining   bool               `json:"hasRemaining"`
	AnsweredTotal  int                `json:"answeredTotal"`
	BankSize       int                `json:"bankSize"`
}

// LifelineUsed reports whether l was consumed in the current batch.
func (v View) LifelineUsed(l session.Lifeline) bool {
	for _, used := range v.UsedLifelines {
		if used == l {
			return true
		}
	}
	return false
}

// IsHidden reports whether option i was removed by fifty-fifty.
func (v View) IsHidden(i int) bool {
	for _, h := range v.Hidden {
		if h == i {
			return true
		}
	}
	return false
}

// Recorder receives quiz events for metrics.
type Recorder interface {
	AnswerRecorded(correct bool)
	LifelineUsed(kind string)
	BatchLoaded()
	BankExhausted()
}

type nopRecorder struct{}

func (nopRecorder) AnswerRecorded(bool) {}
func (nopRecorder) LifelineUsed(string) {}
func (nopRecorder) BatchLoaded()        {}
func (nopRecorder) BankExhausted()      {}

// Timer is a cancellable deferred call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// performanceMessage mirrors the summary tiers of the quiz UI.
func performanceMessage(percent int) string {
	switch {
	case percent == 100:
		return "Perfect Score! Outstanding!"
	case percent >= 80:
		return "Excellent Performance!"
	case percent >= 60:
		return "Good Job! Well Done!"
	case percent >= 40:
		return "Not Bad! Keep Practicing!"
	default:
		return "Better Luck Next Time!"
	}
}

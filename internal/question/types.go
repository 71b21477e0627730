package question

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// Question is one immutable multiple-choice record from the bank.
type Question struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// IsCorrect reports whether option is the right answer.
func (q Question) IsCorrect(option int) bool {
	return option == q.CorrectAnswer
}

// Source answers the two queries the quiz controller needs from a question bank.
type Source interface {
	Size() int
	SequentialUnused(n int, exclude map[int]struct{}) []Question
	Lookup(ids []int) ([]Question, bool)
}

package quiz

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/question"
	"github.com/gokatarajesh/kbc-quiz/internal/session"
)

// Options tunes the controller. Zero values take the package defaults.
type Options struct {
	BatchSize             int
	FeedbackDelay         time.Duration
	PhoneFriendConfidence float64
	Rand                  *rand.Rand
	Scheduler             Scheduler
	Recorder              Recorder
}

// Controller drives the question/answer loop and the batch lifecycle for the single
// player. Every transition holds mu; the deferred advance after an answer re-acquires it.
type Controller struct {
	mu     sync.Mutex
	bank   question.Source
	store  *session.Store
	logger zerolog.Logger

	batchSize     int
	feedbackDelay time.Duration
	phoneConf     float64
	rng           *rand.Rand
	scheduler     Scheduler
	recorder      Recorder

	phase     Phase
	state     session.State
	questions []question.Question
	cursor    int

	hidden   map[int]struct{}
	feedback *Feedback
	phone    *PhoneFriendHint
	poll     []int

	pending Timer
	gen     uint64
}

// NewController builds a controller in the landing phase. Call Start to mount a session.
func NewController(bank question.Source, store *session.Store, logger zerolog.Logger, opts Options) *Controller {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	// Zero takes the default; a negative delay advances immediately.
	delay := opts.FeedbackDelay
	switch {
	case delay == 0:
		delay = DefaultFeedbackDelay
	case delay < 0:
		delay = 0
	}
	conf := opts.PhoneFriendConfidence
	if conf <= 0 || conf > 1 {
		conf = DefaultPhoneFriendConfidence
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = clockScheduler{}
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Controller{
		bank:          bank,
		store:         store,
		logger:        logger.With().Str("component", "quiz_controller").Logger(),
		batchSize:     batchSize,
		feedbackDelay: delay,
		phoneConf:     conf,
		rng:           rng,
		scheduler:     scheduler,
		recorder:      recorder,
		phase:         PhaseLanding,
		state:         session.DefaultState(),
		hidden:        map[int]struct{}{},
	}
}

// Start mounts the quiz: it reads persisted progress and either resumes the unfinished
// batch or loads a fresh one. Calling it again behaves like a page reload.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx = detach(ctx)
	c.mount(ctx)
}

// EnsureStarted mounts the quiz only if it is still on the landing view.
func (c *Controller) EnsureStarted(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx = detach(ctx)
	if c.phase == PhaseLanding {
		c.mount(ctx)
	}
}

func (c *Controller) mount(ctx context.Context) {
	c.cancelPending()
	c.phase = PhaseLoading

	st, err := c.store.Initialize(ctx)
	if err != nil {
		// Never overwrite stored progress with defaults; the next request retries.
		c.logger.Error().Err(err).Msg("session read failed")
		c.phase = PhaseLanding
		return
	}
	c.state = st

	if st.Resumable() && c.resume(ctx) {
		return
	}
	c.loadFreshBatch(ctx)
}

func (c *Controller) resume(ctx context.Context) bool {
	qs, ok := c.bank.Lookup(c.state.BatchQuestionIDs)
	if !ok || len(qs) == 0 || c.state.CurrentQuestionIndex >= len(qs) {
		c.logger.Warn().
			Ints("batch_question_ids", c.state.BatchQuestionIDs).
			Int("index", c.state.CurrentQuestionIndex).
			Msg("persisted batch is invalid; loading a fresh batch")
		return false
	}

	missing := false
	for _, id := range c.state.BatchQuestionIDs {
		if !c.state.UsedQuestionIDs.Has(id) {
			missing = true
			break
		}
	}
	if missing {
		used, err := c.store.MarkQuestionsUsed(ctx, c.state.BatchQuestionIDs)
		if err != nil {
			c.logger.Error().Err(err).Msg("mark resumed batch used")
			c.state.UsedQuestionIDs.Add(c.state.BatchQuestionIDs...)
		} else {
			c.state.UsedQuestionIDs = used
		}
	}

	c.questions = qs
	c.cursor = c.state.CurrentQuestionIndex
	c.clearQuestionEffects()
	c.phase = PhasePresenting
	c.logger.Info().
		Int("batch", c.state.CurrentBatch).
		Int("index", c.cursor).
		Int("used_lifelines", len(c.state.UsedLifelines)).
		Msg("resumed batch")
	return true
}

// loadFreshBatch selects the next unused questions and resets per-batch state.
func (c *Controller) loadFreshBatch(ctx context.Context) {
	c.phase = PhaseLoading
	c.state.CurrentQuestionIndex = 0
	c.state.IsBatchComplete = false
	c.state.BatchScore = 0
	c.state.UsedLifelines = session.LifelineSet{}
	c.cursor = 0
	c.clearQuestionEffects()

	next := c.bank.SequentialUnused(c.batchSize, c.state.UsedQuestionIDs)
	if len(next) == 0 {
		c.questions = nil
		c.state.BatchQuestionIDs = []int{}
		c.persist(ctx, "bank exhausted")
		c.phase = PhaseFinished
		c.recorder.BankExhausted()
		c.logger.Info().Int("answered", len(c.state.UsedQuestionIDs)).Msg("question bank exhausted")
		return
	}

	ids := make([]int, len(next))
	for i, q := range next {
		ids[i] = q.ID
	}
	c.questions = next
	c.state.BatchQuestionIDs = ids
	c.state.UsedQuestionIDs.Add(ids...)
	c.persist(ctx, "load batch")

	c.phase = PhasePresenting
	c.recorder.BatchLoaded()
	c.logger.Info().Int("batch", c.state.CurrentBatch).Ints("question_ids", ids).Msg("batch loaded")
}

// Answer records the player's choice for the current question. The view stays on
// feedback for the configured delay, then advances on its own.
func (c *Controller) Answer(ctx context.Context, option int) (Feedback, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx = detach(ctx)

	switch c.phase {
	case PhaseFeedback:
		return Feedback{}, ErrAlreadyAnswered
	case PhasePresenting:
	default:
		return Feedback{}, ErrNotPresenting
	}

	q := c.questions[c.cursor]
	if option < 0 || option >= len(q.Options) {
		return Feedback{}, ErrInvalidOption
	}
	if _, hidden := c.hidden[option]; hidden {
		return Feedback{}, ErrOptionHidden
	}

	correct := q.IsCorrect(option)
	fb := Feedback{
		QuestionID:    q.ID,
		Selected:      option,
		CorrectAnswer: q.CorrectAnswer,
		Correct:       correct,
	}
	c.feedback = &fb
	c.phase = PhaseFeedback

	if correct {
		c.state.Score++
		c.state.BatchScore++
	}
	if c.cursor+1 < len(c.questions) {
		c.state.CurrentQuestionIndex = c.cursor + 1
	} else {
		c.state.IsBatchComplete = true
	}
	c.persist(ctx, "answer")
	c.recorder.AnswerRecorded(correct)

	c.logger.Debug().
		Int("question_id", q.ID).
		Int("selected", option).
		Bool("correct", correct).
		Int("score", c.state.Score).
		Msg("answer recorded")

	c.scheduleAdvance()
	return fb, nil
}

func (c *Controller) scheduleAdvance() {
	c.cancelPending()
	gen := c.gen
	c.pending = c.scheduler.AfterFunc(c.feedbackDelay, func() {
		c.advance(gen)
	})
}

func (c *Controller) advance(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.phase != PhaseFeedback {
		return
	}
	c.pending = nil
	c.clearQuestionEffects()
	if c.state.IsBatchComplete {
		c.phase = PhaseBatchComplete
		c.logger.Info().
			Int("batch", c.state.CurrentBatch).
			Int("batch_score", c.state.BatchScore).
			Int("score", c.state.Score).
			Msg("batch complete")
		return
	}
	c.cursor = c.state.CurrentQuestionIndex
	c.phase = PhasePresenting
}

// NextBatch moves from the batch summary to a fresh batch.
func (c *Controller) NextBatch(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx = detach(ctx)

	if c.phase != PhaseBatchComplete || !session.HasRemaining(c.state.UsedQuestionIDs, c.bank.Size()) {
		return ErrNoNextBatch
	}
	c.state.CurrentBatch++
	if err := c.store.SaveCurrentBatch(ctx, c.state.CurrentBatch); err != nil {
		c.logger.Error().Err(err).Msg("persist current batch")
	}
	if err := c.store.ResetUsedLifelines(ctx); err != nil {
		c.logger.Error().Err(err).Msg("reset lifelines")
	}
	c.loadFreshBatch(ctx)
	return nil
}

// Restart discards the whole session and returns to the landing view.
func (c *Controller) Restart(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx = detach(ctx)

	c.cancelPending()
	if err := c.store.Reset(ctx); err != nil {
		c.logger.Error().Err(err).Msg("reset session")
	}
	c.state = session.DefaultState()
	c.questions = nil
	c.cursor = 0
	c.clearQuestionEffects()
	c.phase = PhaseLanding
	c.logger.Info().Msg("session restarted")
}

// UseLifeline consumes a lifeline for the current batch and applies its effect to the
// question on screen.
func (c *Controller) UseLifeline(ctx context.Context, kind session.Lifeline) (LifelineResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx = detach(ctx)

	if !kind.Valid() {
		return LifelineResult{}, ErrUnknownLifeline
	}
	if c.phase != PhasePresenting {
		return LifelineResult{}, ErrNotPresenting
	}
	if c.state.UsedLifelines.Has(kind) {
		return LifelineResult{}, ErrLifelineUsed
	}

	c.state.UsedLifelines[kind] = struct{}{}
	if err := c.store.SaveUsedLifelines(ctx, c.state.UsedLifelines); err != nil {
		c.logger.Error().Err(err).Msg("persist used lifelines")
	}
	c.recorder.LifelineUsed(string(kind))

	q := c.questions[c.cursor]
	res := LifelineResult{Kind: kind}
	switch kind {
	case session.LifelineFiftyFifty:
		res.Hidden = c.fiftyFifty(q)
		c.reconcileHints(q)
		if c.phone != nil {
			hint := *c.phone
			res.PhoneFriend = &hint
		}
		if c.poll != nil {
			res.AudiencePoll = append([]int(nil), c.poll...)
		}
	case session.LifelinePhoneFriend:
		c.phone = c.phoneFriend(q)
		res.PhoneFriend = c.phone
	case session.LifelineAudiencePoll:
		c.poll = c.audiencePoll(q)
		res.AudiencePoll = append([]int(nil), c.poll...)
	}
	c.logger.Debug().Str("lifeline", string(kind)).Int("question_id", q.ID).Msg("lifeline used")
	return res, nil
}

// fiftyFifty hides two random wrong options of q.
func (c *Controller) fiftyFifty(q question.Question) []int {
	wrong := make([]int, 0, len(q.Options)-1)
	for i := range q.Options {
		if i != q.CorrectAnswer {
			wrong = append(wrong, i)
		}
	}
	c.rng.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
	hide := wrong
	if len(hide) > 2 {
		hide = hide[:2]
	}
	sort.Ints(hide)
	for _, i := range hide {
		c.hidden[i] = struct{}{}
	}
	return append([]int(nil), hide...)
}

// reconcileHints keeps earlier phone and poll results consistent with options that
// fifty-fifty just removed. A phone hint on a hidden option is re-rolled; poll shares of
// hidden options move to the strongest visible wrong option, or to the correct one.
func (c *Controller) reconcileHints(q question.Question) {
	if c.phone != nil {
		if _, hidden := c.hidden[c.phone.Suggested]; hidden {
			c.phone = c.phoneFriend(q)
		}
	}
	if c.poll == nil {
		return
	}
	target := q.CorrectAnswer
	for _, i := range c.visibleWrong(q) {
		if target == q.CorrectAnswer || c.poll[i] > c.poll[target] {
			target = i
		}
	}
	for i := range c.hidden {
		if i < len(c.poll) && i != target {
			c.poll[target] += c.poll[i]
			c.poll[i] = 0
		}
	}
}

// phoneFriend suggests the right answer with probability phoneConf, otherwise a
// visible wrong option.
func (c *Controller) phoneFriend(q question.Question) *PhoneFriendHint {
	conf := int(math.Round(c.phoneConf * 100))
	wrong := c.visibleWrong(q)
	if len(wrong) == 0 || c.rng.Float64() < c.phoneConf {
		return &PhoneFriendHint{Suggested: q.CorrectAnswer, Confidence: conf}
	}
	return &PhoneFriendHint{Suggested: wrong[c.rng.Intn(len(wrong))], Confidence: conf}
}

// audiencePoll returns a percentage per option summing to 100. Hidden options get 0 and
// the correct answer takes between 40 and 70 percent.
func (c *Controller) audiencePoll(q question.Question) []int {
	out := make([]int, len(q.Options))
	wrong := c.visibleWrong(q)
	if len(wrong) == 0 {
		out[q.CorrectAnswer] = 100
		return out
	}

	correctShare := 40 + c.rng.Intn(31)
	out[q.CorrectAnswer] = correctShare
	rest := 100 - correctShare

	weights := make([]int, len(wrong))
	total := 0
	for i := range weights {
		weights[i] = 1 + c.rng.Intn(10)
		total += weights[i]
	}
	// Largest remainder keeps the sum exact.
	type share struct{ idx, rem int }
	shares := make([]share, len(wrong))
	assigned := 0
	for i, opt := range wrong {
		v := rest * weights[i] / total
		out[opt] = v
		assigned += v
		shares[i] = share{idx: opt, rem: rest * weights[i] % total}
	}
	sort.SliceStable(shares, func(a, b int) bool { return shares[a].rem > shares[b].rem })
	for i := 0; assigned < rest; i++ {
		out[shares[i%len(shares)].idx]++
		assigned++
	}
	return out
}

func (c *Controller) visibleWrong(q question.Question) []int {
	var out []int
	for i := range q.Options {
		if i == q.CorrectAnswer {
			continue
		}
		if _, hidden := c.hidden[i]; hidden {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Close cancels a pending advance. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPending()
}

// View snapshots the controller for rendering.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Phase:         c.phase,
		Batch:         c.state.CurrentBatch,
		Score:         c.state.Score,
		BatchScore:    c.state.BatchScore,
		BatchLength:   len(c.questions),
		UsedLifelines: c.state.UsedLifelines.Sorted(),
		HasRemaining:  session.HasRemaining(c.state.UsedQuestionIDs, c.bank.Size()),
		AnsweredTotal: len(c.state.UsedQuestionIDs),
		BankSize:      c.bank.Size(),
	}

	switch c.phase {
	case PhasePresenting, PhaseFeedback:
		q := c.questions[c.cursor]
		v.QuestionNumber = c.cursor + 1
		v.Question = &QuestionView{
			ID:      q.ID,
			Text:    q.Question,
			Options: append([]string(nil), q.Options...),
		}
		for i := range q.Options {
			if _, hidden := c.hidden[i]; hidden {
				v.Hidden = append(v.Hidden, i)
			}
		}
		if c.feedback != nil {
			fb := *c.feedback
			v.Feedback = &fb
		}
		if c.phone != nil {
			hint := *c.phone
			v.PhoneFriend = &hint
		}
		if c.poll != nil {
			v.AudiencePoll = append([]int(nil), c.poll...)
		}
	case PhaseBatchComplete:
		v.QuestionNumber = len(c.questions)
		v.Summary = newSummary(c.state.BatchScore, len(c.questions), v.HasRemaining)
	case PhaseFinished:
		v.Summary = newSummary(c.state.Score, len(c.state.UsedQuestionIDs), false)
	}
	return v
}

// State returns a copy of the persisted progress mirror.
func (c *Controller) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func newSummary(score, total int, hasMore bool) *Summary {
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(score) / float64(total) * 100))
	}
	return &Summary{
		Score:      score,
		Total:      total,
		Percentage: pct,
		Message:    performanceMessage(pct),
		HasMore:    hasMore,
	}
}

func (c *Controller) persist(ctx context.Context, op string) {
	if err := c.store.Save(ctx, c.state); err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("persist session")
	}
}

// clearQuestionEffects drops everything scoped to the question on screen.
func (c *Controller) clearQuestionEffects() {
	c.hidden = map[int]struct{}{}
	c.feedback = nil
	c.phone = nil
	c.poll = nil
}

// detach keeps a transition's storage writes alive when the request that started it
// goes away, so persisted progress never stops halfway.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (c *Controller) cancelPending() {
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

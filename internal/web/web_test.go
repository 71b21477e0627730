package web

import (
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/kbc-quiz/internal/question"
	"github.com/gokatarajesh/kbc-quiz/internal/quiz"
	"github.com/gokatarajesh/kbc-quiz/internal/session"
	"github.com/gokatarajesh/kbc-quiz/internal/storage"
	httperrors "github.com/gokatarajesh/kbc-quiz/pkg/http/errors"
)

type heldTimer struct {
	f       func()
	stopped bool
}

func (t *heldTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// heldScheduler keeps deferred calls until flush.
type heldScheduler struct {
	mu     sync.Mutex
	timers []*heldTimer
}

func (s *heldScheduler) AfterFunc(_ time.Duration, f func()) quiz.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &heldTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *heldScheduler) flush() {
	s.mu.Lock()
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.f()
		}
	}
}

type testEnv struct {
	bank   *question.Bank
	ctrl   *quiz.Controller
	sched  *heldScheduler
	server *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	bank, err := question.Default()
	require.NoError(t, err)
	sched := &heldScheduler{}
	store := session.NewStore(storage.NewMemory(), "", logger)
	ctrl := quiz.NewController(bank, store, logger, quiz.Options{
		Rand:      rand.New(rand.NewSource(7)),
		Scheduler: sched,
	})

	h, err := NewHandler(ctrl, quiz.DefaultFeedbackDelay, logger)
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{
		bank:   bank,
		ctrl:   ctrl,
		sched:  sched,
		server: srv,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := e.client.Post(e.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) getBody(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (e *testEnv) correctOption(t *testing.T) int {
	t.Helper()
	v := e.ctrl.View()
	require.NotNil(t, v.Question)
	qs, ok := e.bank.Lookup([]int{v.Question.ID})
	require.True(t, ok)
	return qs[0].CorrectAnswer
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLandingPage(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.getBody(t, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Start Quiz")
	assert.Contains(t, body, `action="/quiz/start"`)
	assert.Equal(t, quiz.PhaseLanding, env.ctrl.View().Phase, "the landing page does not mount")
}

func TestStartRedirectsToQuiz(t *testing.T) {
	env := newTestEnv(t)
	resp := env.post(t, "/quiz/start", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/quiz", resp.Header.Get("Location"))

	status, body := env.getBody(t, "/quiz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Question 1 of 10")
	assert.Contains(t, body, "50:50")
	assert.NotContains(t, body, `http-equiv="refresh"`)
}

func TestAnswerFlowRendersFeedback(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/quiz/start", nil)

	correct := env.correctOption(t)
	resp := env.post(t, "/quiz/answer", url.Values{"option": {string(rune('0' + correct))}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body := env.getBody(t, "/quiz")
	assert.Contains(t, body, "Correct!")
	assert.Contains(t, body, `http-equiv="refresh" content="2"`)

	env.sched.flush()
	_, body = env.getBody(t, "/quiz")
	assert.Contains(t, body, "Question 2 of 10")
	assert.Equal(t, 1, env.ctrl.View().Score)
}

func TestAnswerRejectsNonInteger(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/quiz/start", nil)
	resp := env.post(t, "/quiz/answer", url.Values{"option": {"b"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLifelineFormDisablesButton(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/quiz/start", nil)

	resp := env.post(t, "/quiz/lifeline", url.Values{"kind": {"audience-poll"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body := env.getBody(t, "/quiz")
	assert.Contains(t, body, `value="audience-poll" disabled`)
	assert.Contains(t, body, `class="poll"`)

	resp = env.post(t, "/quiz/lifeline", url.Values{"kind": {"ask-the-host"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummaryAndRestartPages(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/quiz/start", nil)
	for i := 0; i < 10; i++ {
		correct := env.correctOption(t)
		env.post(t, "/quiz/answer", url.Values{"option": {string(rune('0' + correct))}})
		env.sched.flush()
	}

	_, body := env.getBody(t, "/quiz")
	assert.Contains(t, body, "Batch 1 complete")
	assert.Contains(t, body, "Perfect Score! Outstanding!")
	assert.Contains(t, body, "Next Batch")

	env.post(t, "/quiz/next", nil)
	_, body = env.getBody(t, "/quiz")
	assert.Contains(t, body, "Batch 2")
	assert.Contains(t, body, "Question 1 of 10")

	resp := env.post(t, "/quiz/restart", nil)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, quiz.PhaseLanding, env.ctrl.View().Phase)
	assert.Equal(t, 0, env.ctrl.View().Score)
}

func TestAPIAnswer(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postJSON(t, "/v1/session/answer", `{"option":0}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeNotPresenting, decode[httperrors.ErrorResponse](t, resp).Error)

	resp = env.postJSON(t, "/v1/session/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[quiz.View](t, resp)
	assert.Equal(t, quiz.PhasePresenting, view.Phase)

	resp = env.postJSON(t, "/v1/session/answer", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[httperrors.ErrorResponse](t, resp)
	assert.Equal(t, httperrors.ErrCodeMissingField, errResp.Error)
	assert.Equal(t, "option", errResp.Field)

	resp = env.postJSON(t, "/v1/session/answer", `{"option":9}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeInvalidOption, decode[httperrors.ErrorResponse](t, resp).Error)

	correct := env.correctOption(t)
	resp = env.postJSON(t, "/v1/session/answer", `{"option":`+string(rune('0'+correct))+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[AnswerResponse](t, resp)
	assert.True(t, out.Feedback.Correct)
	assert.Equal(t, quiz.PhaseFeedback, out.View.Phase)
	assert.Equal(t, 1, out.View.Score)

	resp = env.postJSON(t, "/v1/session/answer", `{"option":0}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeAlreadyAnswered, decode[httperrors.ErrorResponse](t, resp).Error)
}

func TestAPILifelines(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/v1/session/start", "")

	resp := env.postJSON(t, "/v1/session/lifelines/fifty-fifty", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[LifelineResponse](t, resp)
	assert.Len(t, out.Result.Hidden, 2)
	assert.Equal(t, out.Result.Hidden, out.View.Hidden)

	resp = env.postJSON(t, "/v1/session/answer", `{"option":`+string(rune('0'+out.Result.Hidden[0]))+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeOptionHidden, decode[httperrors.ErrorResponse](t, resp).Error)

	resp = env.postJSON(t, "/v1/session/lifelines/fifty-fifty", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	used := decode[httperrors.ErrorResponse](t, resp)
	assert.Equal(t, httperrors.ErrCodeLifelineUsed, used.Error)
	assert.Equal(t, "fifty-fifty", used.Details["kind"])

	resp = env.postJSON(t, "/v1/session/lifelines/double-dip", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeUnknownLifeline, decode[httperrors.ErrorResponse](t, resp).Error)
}

func TestAPINextAndRestart(t *testing.T) {
	env := newTestEnv(t)
	env.postJSON(t, "/v1/session/start", "")

	resp := env.postJSON(t, "/v1/session/next", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, httperrors.ErrCodeNoNextBatch, decode[httperrors.ErrorResponse](t, resp).Error)

	for i := 0; i < 10; i++ {
		_, err := env.ctrl.Answer(t.Context(), env.correctOption(t))
		require.NoError(t, err)
		env.sched.flush()
	}

	resp, err := env.client.Get(env.server.URL + "/v1/session")
	require.NoError(t, err)
	view := decode[quiz.View](t, resp)
	resp.Body.Close()
	assert.Equal(t, quiz.PhaseBatchComplete, view.Phase)
	require.NotNil(t, view.Summary)
	assert.True(t, view.Summary.HasMore)

	resp = env.postJSON(t, "/v1/session/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[quiz.View](t, resp)
	assert.Equal(t, 2, view.Batch)
	assert.Equal(t, 11, view.Question.ID)

	resp = env.postJSON(t, "/v1/session/restart", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[quiz.View](t, resp)
	assert.Equal(t, quiz.PhaseLanding, view.Phase)
	assert.Equal(t, 1, view.Batch)
}

package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gokatarajesh/kbc-quiz/internal/logging"
	"github.com/gokatarajesh/kbc-quiz/internal/quiz"
	"github.com/gokatarajesh/kbc-quiz/internal/session"
)

// Landing handles GET /
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "landing", pageData{View: h.quiz.View()})
}

// StartQuiz handles POST /quiz/start
func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	h.quiz.EnsureStarted(r.Context())
	redirectToQuiz(w, r)
}

// ShowQuiz handles GET /quiz. Navigating here mounts the session if needed.
func (h *Handler) ShowQuiz(w http.ResponseWriter, r *http.Request) {
	h.quiz.EnsureStarted(r.Context())
	v := h.quiz.View()

	data := pageData{View: v, ShowScore: true}
	switch v.Phase {
	case quiz.PhasePresenting, quiz.PhaseFeedback:
		if v.Phase == quiz.PhaseFeedback {
			data.Refresh = h.refresh
		}
		for _, l := range session.Lifelines {
			data.Lifelines = append(data.Lifelines, lifelineButton{
				Kind:  l,
				Label: lifelineLabels[l],
				Used:  v.LifelineUsed(l),
			})
		}
		h.render(w, r, "quiz", data)
	case quiz.PhaseBatchComplete:
		h.render(w, r, "summary", data)
	case quiz.PhaseFinished:
		h.render(w, r, "finished", data)
	default:
		// Mount is synchronous, so loading is only observable on a concurrent request.
		data.Refresh = 1
		h.render(w, r, "landing", data)
	}
}

// SubmitAnswer handles POST /quiz/answer
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	option, err := strconv.Atoi(r.FormValue("option"))
	if err != nil {
		http.Error(w, "option must be an integer", http.StatusBadRequest)
		return
	}
	if _, err := h.quiz.Answer(r.Context(), option); err != nil {
		h.intentRejected(r, "answer", err)
	}
	redirectToQuiz(w, r)
}

// SubmitLifeline handles POST /quiz/lifeline
func (h *Handler) SubmitLifeline(w http.ResponseWriter, r *http.Request) {
	kind := session.Lifeline(r.FormValue("kind"))
	if _, err := h.quiz.UseLifeline(r.Context(), kind); err != nil {
		if errors.Is(err, quiz.ErrUnknownLifeline) {
			http.Error(w, "unknown lifeline", http.StatusBadRequest)
			return
		}
		h.intentRejected(r, "lifeline", err)
	}
	redirectToQuiz(w, r)
}

// SubmitNext handles POST /quiz/next
func (h *Handler) SubmitNext(w http.ResponseWriter, r *http.Request) {
	if err := h.quiz.NextBatch(r.Context()); err != nil {
		h.intentRejected(r, "next", err)
	}
	redirectToQuiz(w, r)
}

// SubmitRestart handles POST /quiz/restart
func (h *Handler) SubmitRestart(w http.ResponseWriter, r *http.Request) {
	h.quiz.Restart(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// intentRejected logs a stale or invalid intent. The page re-renders the current view.
func (h *Handler) intentRejected(r *http.Request, intent string, err error) {
	logger := logging.FromContext(r.Context())
	logger.Debug().Err(err).Str("intent", intent).Msg("intent ignored")
}

func redirectToQuiz(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/quiz", http.StatusSeeOther)
}

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gokatarajesh/kbc-quiz/internal/quiz"
	"github.com/gokatarajesh/kbc-quiz/internal/session"
	httperrors "github.com/gokatarajesh/kbc-quiz/pkg/http/errors"
)

// AnswerRequest is the body of POST /v1/session/answer.
type AnswerRequest struct {
	Option *int `json:"option"`
}

// AnswerResponse carries the outcome and the view after the answer.
type AnswerResponse struct {
	Feedback quiz.Feedback `json:"feedback"`
	View     quiz.View     `json:"view"`
}

// LifelineResponse carries the lifeline effect and the updated view.
type LifelineResponse struct {
	Result quiz.LifelineResult `json:"result"`
	View   quiz.View           `json:"view"`
}

// GetSession handles GET /v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.quiz.View())
}

// PostStart handles POST /v1/session/start
func (h *Handler) PostStart(w http.ResponseWriter, r *http.Request) {
	h.quiz.EnsureStarted(r.Context())
	h.respondJSON(w, http.StatusOK, h.quiz.View())
}

// PostAnswer handles POST /v1/session/answer
func (h *Handler) PostAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondCode(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.Option == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "option is required", "option")
		return
	}

	fb, err := h.quiz.Answer(r.Context(), *req.Option)
	if err != nil {
		h.respondQuizError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, AnswerResponse{Feedback: fb, View: h.quiz.View()})
}

// PostLifeline handles POST /v1/session/lifelines/{kind}
func (h *Handler) PostLifeline(w http.ResponseWriter, r *http.Request) {
	kind := session.Lifeline(r.PathValue("kind"))
	res, err := h.quiz.UseLifeline(r.Context(), kind)
	if errors.Is(err, quiz.ErrLifelineUsed) {
		httperrors.RespondCodeWithDetails(w, httperrors.ErrCodeLifelineUsed, err.Error(),
			map[string]interface{}{"kind": string(kind)})
		return
	}
	if err != nil {
		h.respondQuizError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, LifelineResponse{Result: res, View: h.quiz.View()})
}

// PostNext handles POST /v1/session/next
func (h *Handler) PostNext(w http.ResponseWriter, r *http.Request) {
	if err := h.quiz.NextBatch(r.Context()); err != nil {
		h.respondQuizError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, h.quiz.View())
}

// PostRestart handles POST /v1/session/restart
func (h *Handler) PostRestart(w http.ResponseWriter, r *http.Request) {
	h.quiz.Restart(r.Context())
	h.respondJSON(w, http.StatusOK, h.quiz.View())
}

// quizErrorCodes maps controller sentinels to API error codes.
var quizErrorCodes = []struct {
	err  error
	code string
}{
	{quiz.ErrInvalidOption, httperrors.ErrCodeInvalidOption},
	{quiz.ErrOptionHidden, httperrors.ErrCodeOptionHidden},
	{quiz.ErrUnknownLifeline, httperrors.ErrCodeUnknownLifeline},
	{quiz.ErrNotPresenting, httperrors.ErrCodeNotPresenting},
	{quiz.ErrAlreadyAnswered, httperrors.ErrCodeAlreadyAnswered},
	{quiz.ErrLifelineUsed, httperrors.ErrCodeLifelineUsed},
	{quiz.ErrNoNextBatch, httperrors.ErrCodeNoNextBatch},
}

func (h *Handler) respondQuizError(w http.ResponseWriter, err error) {
	for _, m := range quizErrorCodes {
		if errors.Is(err, m.err) {
			httperrors.RespondCode(w, m.code, err.Error())
			return
		}
	}
	h.logger.Error().Err(err).Msg("unexpected quiz error")
	httperrors.RespondInternalError(w, "Internal error")
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

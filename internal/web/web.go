package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/kbc-quiz/internal/quiz"
	"github.com/gokatarajesh/kbc-quiz/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Quiz is the controller surface the handlers drive.
type Quiz interface {
	Start(ctx context.Context)
	EnsureStarted(ctx context.Context)
	View() quiz.View
	Answer(ctx context.Context, option int) (quiz.Feedback, error)
	UseLifeline(ctx context.Context, kind session.Lifeline) (quiz.LifelineResult, error)
	NextBatch(ctx context.Context) error
	Restart(ctx context.Context)
}

// Handler serves the HTML pages and the JSON session API.
type Handler struct {
	quiz    Quiz
	logger  zerolog.Logger
	pages   map[string]*template.Template
	refresh int
}

// NewHandler parses the embedded templates. feedbackDelay sets the auto-refresh on the
// feedback view.
func NewHandler(q Quiz, feedbackDelay time.Duration, logger zerolog.Logger) (*Handler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"landing", "quiz", "summary", "finished"} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	refresh := int(math.Ceil(feedbackDelay.Seconds()))
	if refresh < 1 {
		refresh = 1
	}
	return &Handler{
		quiz:    q,
		logger:  logger.With().Str("component", "web").Logger(),
		pages:   pages,
		refresh: refresh,
	}, nil
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Landing)
	mux.HandleFunc("POST /quiz/start", h.StartQuiz)
	mux.HandleFunc("GET /quiz", h.ShowQuiz)
	mux.HandleFunc("POST /quiz/answer", h.SubmitAnswer)
	mux.HandleFunc("POST /quiz/lifeline", h.SubmitLifeline)
	mux.HandleFunc("POST /quiz/next", h.SubmitNext)
	mux.HandleFunc("POST /quiz/restart", h.SubmitRestart)

	mux.HandleFunc("GET /v1/session", h.GetSession)
	mux.HandleFunc("POST /v1/session/start", h.PostStart)
	mux.HandleFunc("POST /v1/session/answer", h.PostAnswer)
	mux.HandleFunc("POST /v1/session/lifelines/{kind}", h.PostLifeline)
	mux.HandleFunc("POST /v1/session/next", h.PostNext)
	mux.HandleFunc("POST /v1/session/restart", h.PostRestart)
}

var funcs = template.FuncMap{
	"letter": func(i int) string {
		if i < 0 || i > 25 {
			return "?"
		}
		return string(rune('A' + i))
	},
}

type lifelineButton struct {
	Kind  session.Lifeline
	Label string
	Used  bool
}

var lifelineLabels = map[session.Lifeline]string{
	session.LifelineFiftyFifty:   "50:50",
	session.LifelinePhoneFriend:  "Phone a Friend",
	session.LifelineAudiencePoll: "Ask the Audience",
}

type pageData struct {
	View      quiz.View
	Refresh   int
	ShowScore bool
	Lifelines []lifelineButton
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error().Err(err).Str("page", name).Str("path", r.URL.Path).Msg("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Quiz holds the collectors exported on /metrics. It satisfies quiz.Recorder.
type Quiz struct {
	answers          *prometheus.CounterVec
	lifelines        *prometheus.CounterVec
	batchesLoaded    prometheus.Counter
	bankExhausted    prometheus.Counter
	storageFallbacks prometheus.Counter
	requestDuration  *prometheus.HistogramVec
}

// New registers the quiz collectors with reg.
func New(reg prometheus.Registerer) *Quiz {
	factory := promauto.With(reg)
	return &Quiz{
		answers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbc_quiz_answers_total",
				Help: "Answers submitted, by correctness",
			},
			[]string{"correct"},
		),
		lifelines: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kbc_quiz_lifelines_used_total",
				Help: "Lifelines consumed, by kind",
			},
			[]string{"kind"},
		),
		batchesLoaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "kbc_quiz_batches_loaded_total",
			Help: "Fresh question batches loaded",
		}),
		bankExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "kbc_quiz_bank_exhausted_total",
			Help: "Times the question bank ran out of unused questions",
		}),
		storageFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "kbc_quiz_storage_fallbacks_total",
			Help: "Times session storage degraded to process memory",
		}),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kbc_quiz_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}
}

func (m *Quiz) AnswerRecorded(correct bool) {
	m.answers.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (m *Quiz) LifelineUsed(kind string) {
	m.lifelines.WithLabelValues(kind).Inc()
}

func (m *Quiz) BatchLoaded() { m.batchesLoaded.Inc() }

func (m *Quiz) BankExhausted() { m.bankExhausted.Inc() }

// StorageFallback matches the storage.Fallback callback signature.
func (m *Quiz) StorageFallback(error) { m.storageFallbacks.Inc() }

// ObserveRequest records one served request.
func (m *Quiz) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

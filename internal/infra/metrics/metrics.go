package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DigestBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "digest_build_seconds",
		Help:    "Время сбора и суммаризации темы",
		Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})

	MessagesCollected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_messages_total",
		Help: "Количество сообщений, попавших в дайджест темы",
	}, []string{"topic"})

	LinksOmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_links_omitted_total",
		Help: "Количество ссылок, не вошедших в дайджест из-за лимита",
	}, []string{"topic"})

	TopicFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_topic_failures_total",
		Help: "Ошибки обработки темы",
	}, []string{"topic"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		DigestBuildSeconds,
		MessagesCollected,
		LinksOmitted,
		TopicFailures,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// ObserveNetworkRequest учитывает сетевой вызов компонента. Пустые метки заменяются на "unknown".
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	labels := []string{orUnknown(component), orUnknown(operation), orUnknown(target), requestStatus(err)}
	NetworkRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(labels...).Inc()
}

// ObserveLLMGeneration учитывает время генерации и расход токенов модели.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens int) {
	model = orUnknown(model)
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	for kind, n := range map[string]int{"prompt": promptTokens, "completion": completionTokens} {
		if n > 0 {
			LLMTokensTotal.WithLabelValues(model, kind).Add(float64(n))
		}
	}
}

func requestStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func orUnknown(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}

package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"tg-topic-digest/internal/infra/metrics"
)

func TestHealthz(t *testing.T) {
	s := NewServer(":0", zerolog.Nop())
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("ожидали 200 ok, получили %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsExposesDigestCounters(t *testing.T) {
	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.TopicFailures.WithLabelValues("Work").Inc()
	s := NewServer(":0", zerolog.Nop())
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `digest_topic_failures_total{topic="Work"} 1`) {
		t.Fatalf("ожидали счётчик ошибок тем в ответе")
	}
}

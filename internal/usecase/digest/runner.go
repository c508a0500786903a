package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/metrics"
)

const defaultGuardTTL = 36 * time.Hour

type topicAggregator interface {
	Aggregate(ctx context.Context, topic domain.Topic, destination int64, day time.Time) (domain.TopicDigest, error)
}

// RunnerConfig задаёт поведение запуска.
type RunnerConfig struct {
	// Owner получает дайджесты тем без явного чата назначения.
	Owner int64
	// ContinueOnError продолжает обработку следующих тем после ошибки.
	ContinueOnError bool
	GuardTTL        time.Duration
}

// Runner последовательно обрабатывает темы и пишет аудит по каждой.
type Runner struct {
	aggregator topicAggregator
	dispatcher domain.Dispatcher
	audit      domain.AuditLog
	guard      domain.DeliveryGuard
	cfg        RunnerConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewRunner создаёт оркестратор. guard может быть nil.
func NewRunner(aggregator topicAggregator, dispatcher domain.Dispatcher, audit domain.AuditLog, guard domain.DeliveryGuard, cfg RunnerConfig, log zerolog.Logger) *Runner {
	if cfg.GuardTTL <= 0 {
		cfg.GuardTTL = defaultGuardTTL
	}
	return &Runner{
		aggregator: aggregator,
		dispatcher: dispatcher,
		audit:      audit,
		guard:      guard,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// WithClock подменяет источник текущего времени; часовой пояс результата определяет "сегодня".
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Destination возвращает чат назначения темы или владельца.
func (r *Runner) Destination(topic domain.Topic) int64 {
	if topic.Destination != 0 {
		return topic.Destination
	}
	return r.cfg.Owner
}

// Run обрабатывает темы в заданном порядке.
func (r *Runner) Run(ctx context.Context, topics []domain.Topic) error {
	runID := uuid.NewString()
	day := r.now()
	log := r.log.With().Str("run_id", runID).Str("date", day.Format(DateLayout)).Logger()
	log.Info().Int("topics", len(topics)).Msg("digest: запуск")

	var errs []error
	for _, topic := range topics {
		topicLog := log.With().Str("topic", topic.Name).Logger()
		if err := r.runTopic(ctx, topicLog, runID, day, topic); err != nil {
			metrics.TopicFailures.WithLabelValues(topic.Name).Inc()
			if !r.cfg.ContinueOnError {
				return fmt.Errorf("тема %q: %w", topic.Name, err)
			}
			topicLog.Error().Err(err).Msg("digest: тема пропущена из-за ошибки")
			errs = append(errs, fmt.Errorf("тема %q: %w", topic.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) runTopic(ctx context.Context, log zerolog.Logger, runID string, day time.Time, topic domain.Topic) error {
	destination := r.Destination(topic)
	log.Info().Int64("destination", destination).Int("sources", len(topic.Sources)).Msg("digest: обработка темы")

	record := domain.AuditRecord{
		RunID:       runID,
		Topic:       topic.Name,
		Date:        day.Format(DateLayout),
		Destination: destination,
	}
	key := guardKey(topic.Name, record.Date)

	// Уже отправленная тема не агрегируется, её источники остаются непрочитанными.
	if r.guard != nil {
		delivered, err := r.guard.Delivered(ctx, key)
		if err != nil {
			return fmt.Errorf("проверка повторной отправки: %w", err)
		}
		if delivered {
			return r.skipDelivered(ctx, log, key, record)
		}
	}

	start := time.Now()
	digest, err := r.aggregator.Aggregate(ctx, topic, destination, day)
	metrics.DigestBuildSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if digest.Empty() {
		log.Info().Msg("digest: сообщений не найдено")
		return r.writeAudit(ctx, record)
	}

	metrics.MessagesCollected.WithLabelValues(topic.Name).Add(float64(digest.Collected()))
	send := func() error {
		if err := r.dispatcher.Send(ctx, destination, digest.Text); err != nil {
			if errors.Is(err, domain.ErrDispatch) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
		}
		return nil
	}
	if r.guard != nil {
		ran, err := r.guard.Once(ctx, key, r.cfg.GuardTTL, send)
		if err != nil {
			return err
		}
		if !ran {
			return r.skipDelivered(ctx, log, key, record)
		}
	} else if err := send(); err != nil {
		return err
	}

	record.Collected = digest.Collected()
	log.Info().Int("collected", record.Collected).Int("links", digest.LinkCount).Int("omitted", digest.Omitted).
		Msg("digest: дайджест отправлен")
	return r.writeAudit(ctx, record)
}

func (r *Runner) skipDelivered(ctx context.Context, log zerolog.Logger, key string, record domain.AuditRecord) error {
	log.Warn().Str("key", key).Msg("digest: дайджест уже отправлен сегодня, пропускаем")
	record.AlreadyDelivered = true
	return r.writeAudit(ctx, record)
}

func guardKey(topic, date string) string {
	return fmt.Sprintf("digest:%s:%s", topic, date)
}

func (r *Runner) writeAudit(ctx context.Context, record domain.AuditRecord) error {
	record.At = r.now()
	if err := r.audit.Record(ctx, record); err != nil {
		return fmt.Errorf("запись аудита: %w", err)
	}
	return nil
}

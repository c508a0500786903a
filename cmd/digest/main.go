package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gotd/td/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tg-topic-digest/internal/adapters/auditlog"
	"tg-topic-digest/internal/adapters/bot"
	"tg-topic-digest/internal/adapters/mtproto"
	"tg-topic-digest/internal/adapters/repo"
	"tg-topic-digest/internal/adapters/summarizer"
	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/cache"
	"tg-topic-digest/internal/infra/config"
	"tg-topic-digest/internal/infra/db"
	apphttp "tg-topic-digest/internal/infra/http"
	applog "tg-topic-digest/internal/infra/log"
	"tg-topic-digest/internal/infra/metrics"
	"tg-topic-digest/internal/infra/ollama"
	"tg-topic-digest/internal/infra/openai"
	"tg-topic-digest/internal/infra/queue"
	"tg-topic-digest/internal/usecase/digest"
)

type topicNames []string

func (t *topicNames) String() string { return strings.Join(*t, ",") }

func (t *topicNames) Set(v string) error {
	*t = append(*t, v)
	return nil
}

type options struct {
	listGroups bool
	topics     topicNames
	schedule   string
}

func main() {
	var opts options
	flag.BoolVar(&opts.listGroups, "list-groups", false, "вывести доступные чаты и их идентификаторы")
	flag.Var(&opts.topics, "topic", "обработать только указанную тему (можно повторять)")
	flag.StringVar(&opts.schedule, "schedule", "", "cron-выражение для запуска по расписанию")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("digest: конфигурация")
	}
	if opts.schedule == "" {
		opts.schedule = cfg.Schedule
	}
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, opts, logger)
	stop()
	if err != nil {
		logger.Error().Err(err).Msg("digest: запуск завершился с ошибкой")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.AppConfig, opts options, logger zerolog.Logger) error {
	metrics.MustRegister(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		apphttp.NewServer(cfg.MetricsAddr, logger).Start(ctx)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	var topics []domain.Topic
	if !opts.listGroups {
		all, err := config.LoadTopics(cfg.TopicsFile)
		if err != nil {
			return err
		}
		if topics, err = config.SelectTopics(all, opts.topics); err != nil {
			return err
		}
	}

	storage, closeStorage, err := sessionStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	client, err := mtproto.NewClient(mtproto.Credentials{
		APIID:    cfg.Telegram.APIID,
		APIHash:  cfg.Telegram.APIHash,
		Phone:    cfg.Telegram.Phone,
		Password: cfg.Telegram.Password,
	}, storage, logger)
	if err != nil {
		return err
	}

	summarizerAdapter, err := newSummarizer(cfg)
	if err != nil {
		return err
	}

	audit, closeAudit, err := newAudit(cfg, logger)
	if err != nil {
		return err
	}
	defer closeAudit()

	var guard domain.DeliveryGuard
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		guard = cache.NewRedis(rdb)
	}

	var botDispatcher domain.Dispatcher
	if cfg.Dispatch == config.DispatchBot {
		api, err := bot.Connect(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		botDispatcher = bot.NewDispatcher(api, logger)
	}

	return client.Run(ctx, func(ctx context.Context, source *mtproto.Source) error {
		if opts.listGroups {
			return printChats(ctx, source, os.Stdout)
		}

		var dispatcher domain.Dispatcher = source
		if botDispatcher != nil {
			dispatcher = botDispatcher
		}
		service := digest.NewService(source, summarizerAdapter, digest.Limits{
			HistoryLimit: cfg.Limits.History,
			MaxLinks:     cfg.Limits.MaxLinks,
		}, loc, logger)
		runner := digest.NewRunner(service, dispatcher, audit, guard, digest.RunnerConfig{
			Owner:           cfg.Telegram.OwnerID,
			ContinueOnError: cfg.ContinueOnError,
		}, logger).WithClock(func() time.Time { return time.Now().In(loc) })

		if opts.schedule == "" {
			return runner.Run(ctx, topics)
		}
		return runScheduled(ctx, opts.schedule, loc, logger, func(ctx context.Context) error {
			source.Refresh()
			return runner.Run(ctx, topics)
		})
	})
}

func sessionStorage(ctx context.Context, cfg config.AppConfig) (session.Storage, func(), error) {
	if cfg.PGDSN == "" {
		return &session.FileStorage{Path: cfg.MTProto.SessionFile}, func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	repoAdapter := repo.NewPostgres(pool)
	if err := repoAdapter.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return mtproto.NewSessionDB(repoAdapter, cfg.MTProto.SessionName), pool.Close, nil
}

func newSummarizer(cfg config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Provider {
	case config.ProviderOllama:
		client := ollama.NewClient(cfg.Ollama.URL, cfg.Summarizer.Timeout)
		return summarizer.NewOllama(client, cfg.Ollama.Model, cfg.Prompt()), nil
	case config.ProviderOpenAI:
		client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Summarizer.Timeout)
		return summarizer.NewOpenAI(client, cfg.OpenAI.Model, cfg.Prompt()), nil
	default:
		return nil, fmt.Errorf("неизвестный провайдер суммаризации %q", cfg.Summarizer.Provider)
	}
}

func newAudit(cfg config.AppConfig, logger zerolog.Logger) (domain.AuditLog, func(), error) {
	file := auditlog.NewFile(cfg.AuditDir)
	if cfg.AMQP.URL == "" {
		return file, func() {}, nil
	}
	publisher, err := queue.NewAuditPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("amqp: закрытие соединения")
		}
	}
	return auditlog.Multi{file, publisher}, closeFn, nil
}

func printChats(ctx context.Context, lister domain.ChatLister, out io.Writer) error {
	chats, err := lister.ListChats(ctx)
	if err != nil {
		return err
	}
	for _, chat := range chats {
		fmt.Fprintf(out, "- %s :: %d\n", chat.ListName(), chat.ID)
	}
	return nil
}

// runScheduled запускает fn по cron-расписанию до отмены ctx. Пересекающиеся запуски пропускаются.
func runScheduled(ctx context.Context, expr string, loc *time.Location, logger zerolog.Logger, fn func(context.Context) error) error {
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(expr, func() {
		logger.Info().Str("schedule", expr).Msg("digest: запуск по расписанию")
		if err := fn(ctx); err != nil {
			logger.Error().Err(err).Msg("digest: запуск по расписанию завершился с ошибкой")
		}
	}); err != nil {
		return fmt.Errorf("расписание %q: %w", expr, err)
	}
	c.Start()
	logger.Info().Str("schedule", expr).Str("tz", loc.String()).Msg("digest: ожидание расписания")
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// DispatchUser отправляет дайджесты от имени MTProto-аккаунта.
	DispatchUser = "user"
	// DispatchBot отправляет дайджесты через Bot API.
	DispatchBot = "bot"

	// ProviderOllama использует локальную модель через /api/generate.
	ProviderOllama = "ollama"
	// ProviderOpenAI использует OpenAI-совместимый /chat/completions.
	ProviderOpenAI = "openai"
)

// DefaultPrompt предшествует собранным сообщениям в запросе к модели.
const DefaultPrompt = "Сделай краткое саммари этих сообщений, если нужно раздели на подтемы, подчеркни то что важно:"

// AppConfig описывает конфигурацию дайджеста.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ"`

	Telegram struct {
		APIID    int    `envconfig:"TG_API_ID"`
		APIHash  string `envconfig:"TG_API_HASH"`
		Phone    string `envconfig:"TG_PHONE"`
		Password string `envconfig:"TG_PASSWORD"`
		Token    string `envconfig:"TG_BOT_TOKEN"`
		OwnerID  int64  `envconfig:"OWNER_ID"`
	} `envconfig:""`

	MTProto struct {
		SessionFile string `envconfig:"MTPROTO_SESSION_FILE" default:"session.json"`
		SessionName string `envconfig:"MTPROTO_SESSION_NAME" default:"default"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	Dispatch string `envconfig:"DISPATCH_MODE" default:"user"`

	Summarizer struct {
		Provider string        `envconfig:"SUMMARIZER_PROVIDER" default:"ollama"`
		Prompt   string        `envconfig:"SUMMARY_PROMPT"`
		Timeout  time.Duration `envconfig:"SUMMARIZER_TIMEOUT" default:"5m"`
	} `envconfig:""`

	Ollama struct {
		URL   string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
		Model string `envconfig:"OLLAMA_MODEL" default:"gpt-oss:20b"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string `envconfig:"OPENAI_API_KEY"`
		BaseURL string `envconfig:"OPENAI_BASE_URL"`
		Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
	} `envconfig:""`

	TopicsFile string `envconfig:"TOPICS_FILE" default:"topics.yaml"`
	AuditDir   string `envconfig:"AUDIT_DIR" default:"."`

	Limits struct {
		History  int `envconfig:"HISTORY_LIMIT" default:"500"`
		MaxLinks int `envconfig:"MAX_LINKS" default:"30"`
	} `envconfig:""`

	ContinueOnError bool `envconfig:"CONTINUE_ON_ERROR" default:"false"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQP struct {
		URL   string `envconfig:"AMQP_URL"`
		Queue string `envconfig:"AUDIT_QUEUE" default:"digest_audit"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
	Schedule    string `envconfig:"SCHEDULE"`
}

// Load читает .env (если есть) и загружает конфиг из окружения.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("загрузка .env: %w", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("не удалось загрузить конфиг: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые envconfig не может проверить сам.
func (c AppConfig) Validate() error {
	switch c.Dispatch {
	case DispatchUser, DispatchBot:
	default:
		return fmt.Errorf("DISPATCH_MODE: неизвестный режим %q", c.Dispatch)
	}
	switch c.Summarizer.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("SUMMARIZER_PROVIDER: неизвестный провайдер %q", c.Summarizer.Provider)
	}
	if c.Limits.History <= 0 {
		return errors.New("HISTORY_LIMIT должен быть положительным")
	}
	if c.Limits.MaxLinks <= 0 {
		return errors.New("MAX_LINKS должен быть положительным")
	}
	return nil
}

// Location возвращает часовой пояс, по которому определяется "сегодня".
func (c AppConfig) Location() (*time.Location, error) {
	if c.TZ == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return nil, fmt.Errorf("TZ: %w", err)
	}
	return loc, nil
}

// Prompt возвращает префикс запроса к модели.
func (c AppConfig) Prompt() string {
	if c.Summarizer.Prompt != "" {
		return c.Summarizer.Prompt
	}
	return DefaultPrompt
}

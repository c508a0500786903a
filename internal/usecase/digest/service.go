package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/metrics"
)

const (
	// DefaultHistoryLimit ограничивает число сообщений, читаемых из одного источника.
	DefaultHistoryLimit = 500
	// DefaultMaxLinks ограничивает число строк ссылок в дайджесте темы.
	DefaultMaxLinks = 30
)

// Limits задаёт границы агрегации.
type Limits struct {
	HistoryLimit int
	MaxLinks     int
}

// Service собирает сообщения темы за день и строит дайджест.
type Service struct {
	source     domain.ChatSource
	summarizer domain.Summarizer
	limits     Limits
	loc        *time.Location
	log        zerolog.Logger
}

// NewService создаёт агрегатор тем.
func NewService(source domain.ChatSource, summarizer domain.Summarizer, limits Limits, loc *time.Location, log zerolog.Logger) *Service {
	if limits.HistoryLimit <= 0 {
		limits.HistoryLimit = DefaultHistoryLimit
	}
	if limits.MaxLinks <= 0 {
		limits.MaxLinks = DefaultMaxLinks
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{source: source, summarizer: summarizer, limits: limits, loc: loc, log: log}
}

// Aggregate обходит источники темы, суммаризирует сообщения за day и собирает текст дайджеста.
// Если сообщений нет, возвращается пустой дайджест без вызова суммаризатора.
func (s *Service) Aggregate(ctx context.Context, topic domain.Topic, destination int64, day time.Time) (domain.TopicDigest, error) {
	day = day.In(s.loc)
	digest := domain.TopicDigest{Topic: topic.Name, Destination: destination, Date: day}

	groups := make(map[string]int)
	for _, sourceID := range topic.Sources {
		chat, err := s.source.ChatMeta(ctx, sourceID)
		if err != nil {
			return domain.TopicDigest{}, sourceError("метаданные чата", sourceID, err)
		}
		name := chat.DisplayName()
		idx, ok := groups[name]
		if !ok {
			idx = len(digest.Groups)
			groups[name] = idx
			digest.Groups = append(digest.Groups, domain.LinkGroup{Title: name})
		}

		history, err := s.source.History(ctx, sourceID, s.limits.HistoryLimit)
		if err != nil {
			return domain.TopicDigest{}, sourceError("история чата", sourceID, err)
		}
		kept := 0
		for _, msg := range history {
			if !sameDay(msg.Date.In(s.loc), day) || strings.TrimSpace(msg.Text) == "" {
				continue
			}
			digest.Texts = append(digest.Texts, TextLine(name, msg))
			digest.Groups[idx].Links = append(digest.Groups[idx].Links, LinkLine(chat, msg))
			kept++
		}

		if err := s.source.MarkRead(ctx, sourceID); err != nil {
			return domain.TopicDigest{}, sourceError("отметка прочтения", sourceID, err)
		}
		s.log.Debug().Str("topic", topic.Name).Int64("source", sourceID).Str("chat", name).
			Int("scanned", len(history)).Int("kept", kept).Msg("digest: источник обработан")
	}

	if digest.Empty() {
		return digest, nil
	}

	summary, err := s.summarizer.Summarize(ctx, strings.Join(digest.Texts, "\n"))
	if err != nil {
		if errors.Is(err, domain.ErrSummarization) {
			return domain.TopicDigest{}, fmt.Errorf("тема %q: %w", topic.Name, err)
		}
		return domain.TopicDigest{}, fmt.Errorf("тема %q: %w: %w", topic.Name, domain.ErrSummarization, err)
	}
	digest.Summary = summary

	var links []string
	links, digest.LinkCount, digest.Omitted = BuildLinkBlock(digest.Groups, s.limits.MaxLinks)
	digest.Text = FormatDigest(digest.Topic, day, summary, links)
	if digest.Omitted > 0 {
		metrics.LinksOmitted.WithLabelValues(topic.Name).Add(float64(digest.Omitted))
	}
	return digest, nil
}

// BuildLinkBlock раскладывает ссылки по источникам, соблюдая общий лимит maxLinks.
// Источники без ссылок пропускаются. При достижении лимита добавляется строка
// с числом пропущенных сообщений и обход прекращается.
func BuildLinkBlock(groups []domain.LinkGroup, maxLinks int) (lines []string, emitted, omitted int) {
	total := 0
	for _, g := range groups {
		total += len(g.Links)
	}
	for _, g := range groups {
		if len(g.Links) == 0 {
			continue
		}
		lines = append(lines, "▶ "+g.Title)
		for _, link := range g.Links {
			if emitted >= maxLinks {
				break
			}
			lines = append(lines, link)
			emitted++
		}
		if emitted >= maxLinks {
			omitted = total - maxLinks
			lines = append(lines, fmt.Sprintf("...and %d more messages", omitted))
			break
		}
	}
	return lines, emitted, omitted
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sourceError(step string, sourceID int64, err error) error {
	if errors.Is(err, domain.ErrSourceUnavailable) {
		return fmt.Errorf("%s %d: %w", step, sourceID, err)
	}
	return fmt.Errorf("%s %d: %w: %w", step, sourceID, domain.ErrSourceUnavailable, err)
}

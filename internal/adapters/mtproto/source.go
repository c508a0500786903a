package mtproto

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-topic-digest/internal/adapters/telegram"
	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/metrics"
)

const (
	dialogsBatch   = 100
	historyBatch   = 100
	maxDialogPages = 50
)

// API описывает методы tg.Client, которые использует Source.
type API interface {
	MessagesGetDialogs(ctx context.Context, request *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	MessagesReadHistory(ctx context.Context, request *tg.MessagesReadHistoryRequest) (*tg.MessagesAffectedMessages, error)
	ChannelsReadHistory(ctx context.Context, request *tg.ChannelsReadHistoryRequest) (bool, error)
	MessagesSendMessage(ctx context.Context, request *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error)
}

var _ API = (*tg.Client)(nil)

// Source реализует чтение чатов и отправку сообщений от имени пользователя.
type Source struct {
	api  API
	self *tg.User
	log  zerolog.Logger

	mu    sync.Mutex
	index *peerIndex
}

var (
	_ domain.ChatSource = (*Source)(nil)
	_ domain.ChatLister = (*Source)(nil)
	_ domain.Dispatcher = (*Source)(nil)
)

// NewSource создаёт источник поверх API авторизованного аккаунта self.
func NewSource(api API, self *tg.User, log zerolog.Logger) *Source {
	return &Source{api: api, self: self, log: log}
}

// ChatMeta возвращает название и публичное имя чата.
func (s *Source) ChatMeta(ctx context.Context, chatID int64) (domain.ChatMeta, error) {
	entry, err := s.resolve(ctx, chatID)
	if err != nil {
		return domain.ChatMeta{}, err
	}
	return entry.meta, nil
}

// History возвращает до limit последних сообщений чата, от новых к старым.
func (s *Source) History(ctx context.Context, chatID int64, limit int) ([]domain.Message, error) {
	entry, err := s.resolve(ctx, chatID)
	if err != nil {
		return nil, err
	}
	var (
		out      []domain.Message
		offsetID int
		fetched  int
	)
	for fetched < limit {
		batch := min(historyBatch, limit-fetched)
		start := time.Now()
		res, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     entry.input,
			OffsetID: offsetID,
			Limit:    batch,
		})
		metrics.ObserveNetworkRequest("mtproto", "get_history", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			return nil, fmt.Errorf("%w: история %d: %w", domain.ErrSourceUnavailable, chatID, err)
		}
		messages, users := historyPage(res)
		if len(messages) == 0 {
			break
		}
		names := authorNames(users)
		for _, m := range messages {
			fetched++
			offsetID = m.GetID()
			if msg, ok := convertMessage(m, names, s.selfName()); ok {
				out = append(out, msg)
			}
		}
		if len(messages) < batch {
			break
		}
	}
	return out, nil
}

// MarkRead отмечает историю чата прочитанной.
func (s *Source) MarkRead(ctx context.Context, chatID int64) error {
	entry, err := s.resolve(ctx, chatID)
	if err != nil {
		return err
	}
	start := time.Now()
	if entry.channel != nil {
		_, err = s.api.ChannelsReadHistory(ctx, &tg.ChannelsReadHistoryRequest{Channel: entry.channel})
	} else {
		_, err = s.api.MessagesReadHistory(ctx, &tg.MessagesReadHistoryRequest{Peer: entry.input})
	}
	metrics.ObserveNetworkRequest("mtproto", "read_history", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		return fmt.Errorf("%w: отметка прочтения %d: %w", domain.ErrSourceUnavailable, chatID, err)
	}
	return nil
}

// ListChats возвращает все диалоги аккаунта в порядке списка чатов.
func (s *Source) ListChats(ctx context.Context) ([]domain.ChatMeta, error) {
	idx, err := s.peers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ChatMeta, 0, len(idx.dialogs))
	for _, key := range idx.dialogs {
		if entry, ok := idx.lookup(key); ok {
			out = append(out, entry.meta)
		}
	}
	return out, nil
}

// Send отправляет текст без превью ссылок, разбивая его по лимиту Telegram.
func (s *Source) Send(ctx context.Context, chatID int64, text string) error {
	peer, err := s.destination(ctx, chatID)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	for _, part := range telegram.SplitMessage(text) {
		start := time.Now()
		_, err := s.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:      peer,
			Message:   part,
			RandomID:  randomID(),
			NoWebpage: true,
		})
		metrics.ObserveNetworkRequest("mtproto", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			return fmt.Errorf("%w: отправка в %d: %w", domain.ErrDispatch, chatID, err)
		}
	}
	return nil
}

func (s *Source) destination(ctx context.Context, chatID int64) (tg.InputPeerClass, error) {
	if s.self != nil && chatID == UserKey(s.self.ID) {
		return &tg.InputPeerSelf{}, nil
	}
	entry, err := s.resolve(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return entry.input, nil
}

func (s *Source) resolve(ctx context.Context, chatID int64) (peerEntry, error) {
	idx, err := s.peers(ctx)
	if err != nil {
		return peerEntry{}, err
	}
	entry, ok := idx.lookup(chatID)
	if !ok {
		return peerEntry{}, fmt.Errorf("%w: %w: %d", domain.ErrSourceUnavailable, domain.ErrPeerNotFound, chatID)
	}
	return entry, nil
}

// Refresh сбрасывает индекс чатов; он будет перестроен при следующем обращении.
func (s *Source) Refresh() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}

func (s *Source) peers(ctx context.Context) (*peerIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index, nil
	}
	idx, err := s.loadDialogs(ctx)
	if err != nil {
		return nil, err
	}
	s.index = idx
	return idx, nil
}

// loadDialogs постранично читает список диалогов и строит индекс чатов.
func (s *Source) loadDialogs(ctx context.Context) (*peerIndex, error) {
	idx := newPeerIndex()
	if s.self != nil {
		idx.addUsers([]tg.UserClass{s.self})
	}
	req := &tg.MessagesGetDialogsRequest{OffsetPeer: &tg.InputPeerEmpty{}, Limit: dialogsBatch}
	for page := 0; page < maxDialogPages; page++ {
		start := time.Now()
		res, err := s.api.MessagesGetDialogs(ctx, req)
		metrics.ObserveNetworkRequest("mtproto", "get_dialogs", "dialogs", start, err)
		if err != nil {
			return nil, fmt.Errorf("%w: список диалогов: %w", domain.ErrSourceUnavailable, err)
		}
		var (
			dialogs  []tg.DialogClass
			messages []tg.MessageClass
			full     bool
		)
		switch r := res.(type) {
		case *tg.MessagesDialogs:
			idx.addChats(r.Chats)
			idx.addUsers(r.Users)
			dialogs, messages, full = r.Dialogs, r.Messages, true
		case *tg.MessagesDialogsSlice:
			idx.addChats(r.Chats)
			idx.addUsers(r.Users)
			dialogs, messages = r.Dialogs, r.Messages
		default:
			full = true
		}
		idx.addDialogs(dialogs)
		if full || len(dialogs) < dialogsBatch {
			break
		}
		next, ok := nextDialogsOffset(idx, dialogs, messages)
		if !ok {
			break
		}
		req = next
	}
	s.log.Debug().Int("dialogs", len(idx.dialogs)).Int("peers", len(idx.entries)).Msg("mtproto: индекс чатов построен")
	return idx, nil
}

func nextDialogsOffset(idx *peerIndex, dialogs []tg.DialogClass, messages []tg.MessageClass) (*tg.MessagesGetDialogsRequest, bool) {
	var last *tg.Dialog
	for i := len(dialogs) - 1; i >= 0 && last == nil; i-- {
		last, _ = dialogs[i].(*tg.Dialog)
	}
	if last == nil {
		return nil, false
	}
	key, ok := PeerKey(last.Peer)
	if !ok {
		return nil, false
	}
	entry, ok := idx.lookup(key)
	if !ok {
		return nil, false
	}
	req := &tg.MessagesGetDialogsRequest{OffsetPeer: entry.input, OffsetID: last.TopMessage, Limit: dialogsBatch}
	for _, m := range messages {
		msg, ok := m.(*tg.Message)
		if !ok || msg.ID != last.TopMessage {
			continue
		}
		if peerKey, ok := PeerKey(msg.PeerID); ok && peerKey == key {
			req.OffsetDate = msg.Date
			break
		}
	}
	return req, true
}

func (s *Source) selfName() string {
	if s.self == nil {
		return ""
	}
	return s.self.FirstName
}

func randomID() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

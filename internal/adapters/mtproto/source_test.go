package mtproto

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"tg-topic-digest/internal/domain"
)

type fakeAPI struct {
	dialogs   tg.MessagesDialogsClass
	history   map[int64][]tg.MessageClass
	users     []tg.UserClass
	historyRq []*tg.MessagesGetHistoryRequest
	readChat  []tg.InputPeerClass
	readChan  []*tg.InputChannel
	sent      []*tg.MessagesSendMessageRequest
	dialogsN  int
	sendErr   error
}

func (f *fakeAPI) MessagesGetDialogs(_ context.Context, _ *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error) {
	f.dialogsN++
	return f.dialogs, nil
}

func (f *fakeAPI) MessagesGetHistory(_ context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	f.historyRq = append(f.historyRq, req)
	key := inputKey(req.Peer)
	all := f.history[key]
	start := 0
	if req.OffsetID != 0 {
		for i, m := range all {
			if m.GetID() == req.OffsetID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+req.Limit, len(all))
	return &tg.MessagesMessagesSlice{Messages: all[start:end], Users: f.users, Count: len(all)}, nil
}

func (f *fakeAPI) MessagesReadHistory(_ context.Context, req *tg.MessagesReadHistoryRequest) (*tg.MessagesAffectedMessages, error) {
	f.readChat = append(f.readChat, req.Peer)
	return &tg.MessagesAffectedMessages{}, nil
}

func (f *fakeAPI) ChannelsReadHistory(_ context.Context, req *tg.ChannelsReadHistoryRequest) (bool, error) {
	ch, _ := req.Channel.(*tg.InputChannel)
	f.readChan = append(f.readChan, ch)
	return true, nil
}

func (f *fakeAPI) MessagesSendMessage(_ context.Context, req *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, req)
	return &tg.Updates{}, nil
}

func inputKey(p tg.InputPeerClass) int64 {
	switch p := p.(type) {
	case *tg.InputPeerUser:
		return UserKey(p.UserID)
	case *tg.InputPeerChat:
		return ChatKey(p.ChatID)
	case *tg.InputPeerChannel:
		return ChannelKey(p.ChannelID)
	default:
		return 0
	}
}

var testSelf = &tg.User{ID: 1, Self: true, FirstName: "Me"}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		dialogs: &tg.MessagesDialogs{
			Dialogs: []tg.DialogClass{
				&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 9876543210}},
				&tg.Dialog{Peer: &tg.PeerChat{ChatID: 55}},
				&tg.Dialog{Peer: &tg.PeerUser{UserID: 7}},
			},
			Chats: []tg.ChatClass{
				&tg.Channel{ID: 9876543210, AccessHash: 99, Title: "News", Username: "news"},
				&tg.Chat{ID: 55, Title: "Family"},
			},
			Users: []tg.UserClass{
				&tg.User{ID: 7, AccessHash: 3, FirstName: "Alice"},
			},
		},
		history: make(map[int64][]tg.MessageClass),
		users:   []tg.UserClass{&tg.User{ID: 7, AccessHash: 3, FirstName: "Alice"}},
	}
}

func TestListChatsKeepsDialogOrder(t *testing.T) {
	api := newFakeAPI()
	src := NewSource(api, testSelf, zerolog.Nop())

	chats, err := src.ListChats(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := []int64{-1009876543210, -55, 7}
	if len(chats) != len(want) {
		t.Fatalf("ожидали %d чатов, получили %d", len(want), len(chats))
	}
	for i, id := range want {
		if chats[i].ID != id {
			t.Fatalf("чат %d: ожидали %d, получили %d", i, id, chats[i].ID)
		}
	}
	if chats[0].Username != "news" || chats[0].Title != "News" {
		t.Fatalf("неожиданные метаданные канала: %+v", chats[0])
	}
	if chats[2].DisplayName() != "ID 7" {
		t.Fatalf("у личного чата нет названия, ожидали ID 7, получили %q", chats[2].DisplayName())
	}
	if _, err := src.ChatMeta(context.Background(), -55); err != nil {
		t.Fatalf("ChatMeta: %v", err)
	}
	if api.dialogsN != 1 {
		t.Fatalf("диалоги должны загружаться один раз, загружены %d", api.dialogsN)
	}
}

func TestChatMetaUnknownPeer(t *testing.T) {
	src := NewSource(newFakeAPI(), testSelf, zerolog.Nop())
	_, err := src.ChatMeta(context.Background(), 12345)
	if !errors.Is(err, domain.ErrPeerNotFound) || !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("ожидали ErrPeerNotFound, получили %v", err)
	}
}

func TestHistoryPagesUntilLimit(t *testing.T) {
	api := newFakeAPI()
	var msgs []tg.MessageClass
	for id := 250; id > 0; id-- {
		msgs = append(msgs, &tg.Message{ID: id, PeerID: &tg.PeerChat{ChatID: 55}, FromID: &tg.PeerUser{UserID: 7}, Message: "hi"})
	}
	api.history[-55] = msgs
	src := NewSource(api, testSelf, zerolog.Nop())

	got, err := src.History(context.Background(), -55, 150)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 150 {
		t.Fatalf("ожидали 150 сообщений, получили %d", len(got))
	}
	if got[0].ID != 250 || got[149].ID != 101 {
		t.Fatalf("неожиданный порядок: первое %d, последнее %d", got[0].ID, got[149].ID)
	}
	if len(api.historyRq) != 2 || api.historyRq[1].OffsetID != 151 || api.historyRq[1].Limit != 50 {
		t.Fatalf("неожиданные запросы истории: %d", len(api.historyRq))
	}
	if got[0].Author != "Alice" {
		t.Fatalf("ожидали автора Alice, получили %q", got[0].Author)
	}
}

func TestHistoryStopsOnShortPage(t *testing.T) {
	api := newFakeAPI()
	api.history[7] = []tg.MessageClass{
		&tg.Message{ID: 3, PeerID: &tg.PeerUser{UserID: 7}, Out: true, Message: "ответ"},
		&tg.MessageService{ID: 2, PeerID: &tg.PeerUser{UserID: 7}},
		&tg.Message{ID: 1, PeerID: &tg.PeerUser{UserID: 7}, Message: "привет"},
	}
	src := NewSource(api, testSelf, zerolog.Nop())

	got, err := src.History(context.Background(), 7, 500)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(api.historyRq) != 1 {
		t.Fatalf("ожидали один запрос, получили %d", len(api.historyRq))
	}
	if len(got) != 2 {
		t.Fatalf("служебные сообщения пропускаются, получили %d", len(got))
	}
	if got[0].Author != "Me" || got[1].Author != "Alice" {
		t.Fatalf("неожиданные авторы: %q, %q", got[0].Author, got[1].Author)
	}
}

func TestMarkReadUsesChannelMethod(t *testing.T) {
	api := newFakeAPI()
	src := NewSource(api, testSelf, zerolog.Nop())

	if err := src.MarkRead(context.Background(), -1009876543210); err != nil {
		t.Fatalf("MarkRead канала: %v", err)
	}
	if err := src.MarkRead(context.Background(), -55); err != nil {
		t.Fatalf("MarkRead группы: %v", err)
	}
	if len(api.readChan) != 1 || api.readChan[0].ChannelID != 9876543210 || api.readChan[0].AccessHash != 99 {
		t.Fatalf("канал должен читаться через channels.readHistory: %+v", api.readChan)
	}
	if len(api.readChat) != 1 {
		t.Fatalf("группа должна читаться через messages.readHistory")
	}
}

func TestSendToSelfAndSplit(t *testing.T) {
	api := newFakeAPI()
	src := NewSource(api, testSelf, zerolog.Nop())

	long := strings.Repeat("строка\n", 1000)
	if err := src.Send(context.Background(), 1, long); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(api.sent) < 2 {
		t.Fatalf("длинный текст должен разбиваться, частей %d", len(api.sent))
	}
	for _, req := range api.sent {
		if _, ok := req.Peer.(*tg.InputPeerSelf); !ok {
			t.Fatalf("ожидали InputPeerSelf, получили %T", req.Peer)
		}
		if !req.NoWebpage {
			t.Fatalf("превью ссылок должно быть отключено")
		}
	}
	if api.sent[0].RandomID == api.sent[1].RandomID {
		t.Fatalf("random_id частей совпадают")
	}
}

func TestSendWrapsDispatchError(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errors.New("FLOOD_WAIT")
	src := NewSource(api, testSelf, zerolog.Nop())

	err := src.Send(context.Background(), -55, "текст")
	if !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("ожидали ErrDispatch, получили %v", err)
	}
	if err := src.Send(context.Background(), 424242, "текст"); !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("неизвестный получатель: ожидали ErrDispatch, получили %v", err)
	}
}

func TestConvertMessageMediaHasNoText(t *testing.T) {
	msg := &tg.Message{
		ID:      5,
		Date:    int(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Unix()),
		PeerID:  &tg.PeerChannel{ChannelID: 1},
		Message: "подпись",
		Media:   &tg.MessageMediaPhoto{},
	}
	got, ok := convertMessage(msg, nil, "")
	if !ok {
		t.Fatalf("сообщение с медиа не должно пропускаться")
	}
	if got.Text != "" {
		t.Fatalf("подпись к медиа не считается текстом, получили %q", got.Text)
	}
	if got.Author != domain.AnonAuthor {
		t.Fatalf("пост канала без отправителя: ожидали %q, получили %q", domain.AnonAuthor, got.Author)
	}
	if !got.Date.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("неожиданная дата %v", got.Date)
	}

	msg.Media = &tg.MessageMediaWebPage{}
	if got, _ := convertMessage(msg, nil, ""); got.Text != "подпись" {
		t.Fatalf("сообщение с превью ссылки остаётся текстовым")
	}
}

func TestRefreshReloadsDialogs(t *testing.T) {
	api := newFakeAPI()
	src := NewSource(api, testSelf, zerolog.Nop())

	if _, err := src.ListChats(context.Background()); err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	src.Refresh()
	if _, err := src.ChatMeta(context.Background(), -55); err != nil {
		t.Fatalf("ChatMeta: %v", err)
	}
	if api.dialogsN != 2 {
		t.Fatalf("после Refresh диалоги загружаются заново, загрузок %d", api.dialogsN)
	}
}

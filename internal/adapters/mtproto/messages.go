package mtproto

import (
	"time"

	"github.com/gotd/td/tg"

	"tg-topic-digest/internal/domain"
)

func historyPage(res tg.MessagesMessagesClass) ([]tg.MessageClass, []tg.UserClass) {
	switch r := res.(type) {
	case *tg.MessagesMessages:
		return r.Messages, r.Users
	case *tg.MessagesMessagesSlice:
		return r.Messages, r.Users
	case *tg.MessagesChannelMessages:
		return r.Messages, r.Users
	default:
		return nil, nil
	}
}

func authorNames(users []tg.UserClass) map[int64]string {
	names := make(map[int64]string, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			names[user.ID] = user.FirstName
		}
	}
	return names
}

// convertMessage переводит сообщение MTProto в доменное. Служебные сообщения пропускаются.
// Текст берётся только у текстовых сообщений: подписи к медиа текстом не считаются.
func convertMessage(m tg.MessageClass, names map[int64]string, selfName string) (domain.Message, bool) {
	msg, ok := m.(*tg.Message)
	if !ok {
		return domain.Message{}, false
	}
	out := domain.Message{
		ID:     msg.ID,
		Date:   time.Unix(int64(msg.Date), 0),
		Author: messageAuthor(msg, names, selfName),
	}
	if isTextMessage(msg) {
		out.Text = msg.Message
	}
	return out, true
}

func isTextMessage(msg *tg.Message) bool {
	switch msg.Media.(type) {
	case nil, *tg.MessageMediaEmpty, *tg.MessageMediaWebPage:
		return true
	default:
		return false
	}
}

func messageAuthor(msg *tg.Message, names map[int64]string, selfName string) string {
	from := msg.FromID
	if from == nil {
		if _, private := msg.PeerID.(*tg.PeerUser); !private {
			return domain.AnonAuthor
		}
		if msg.Out {
			return nonEmpty(selfName)
		}
		from = msg.PeerID
	}
	user, ok := from.(*tg.PeerUser)
	if !ok {
		return domain.AnonAuthor
	}
	return nonEmpty(names[user.UserID])
}

func nonEmpty(name string) string {
	if name == "" {
		return domain.AnonAuthor
	}
	return name
}

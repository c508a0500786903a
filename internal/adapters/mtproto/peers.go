package mtproto

import (
	"github.com/gotd/td/tg"

	"tg-topic-digest/internal/domain"
)

// channelIDShift добавляется к идентификатору канала в формате "-100<id>".
const channelIDShift = 1_000_000_000_000

// UserKey переводит идентификатор пользователя в формат Bot API.
func UserKey(id int64) int64 { return id }

// ChatKey переводит идентификатор обычной группы в формат Bot API.
func ChatKey(id int64) int64 { return -id }

// ChannelKey переводит идентификатор канала или супергруппы в формат Bot API.
func ChannelKey(id int64) int64 { return -(channelIDShift + id) }

// PeerKey возвращает идентификатор чата в формате Bot API.
func PeerKey(p tg.PeerClass) (int64, bool) {
	switch p := p.(type) {
	case *tg.PeerUser:
		return UserKey(p.UserID), true
	case *tg.PeerChat:
		return ChatKey(p.ChatID), true
	case *tg.PeerChannel:
		return ChannelKey(p.ChannelID), true
	default:
		return 0, false
	}
}

type peerEntry struct {
	meta    domain.ChatMeta
	input   tg.InputPeerClass
	channel *tg.InputChannel
}

// peerIndex хранит чаты и пользователей, известных аккаунту, по ключу Bot API.
type peerIndex struct {
	entries map[int64]peerEntry
	dialogs []int64
}

func newPeerIndex() *peerIndex {
	return &peerIndex{entries: make(map[int64]peerEntry)}
}

func (idx *peerIndex) addChats(chats []tg.ChatClass) {
	for _, c := range chats {
		switch c := c.(type) {
		case *tg.Chat:
			key := ChatKey(c.ID)
			idx.entries[key] = peerEntry{
				meta:  domain.ChatMeta{ID: key, Title: c.Title},
				input: &tg.InputPeerChat{ChatID: c.ID},
			}
		case *tg.ChatForbidden:
			key := ChatKey(c.ID)
			idx.entries[key] = peerEntry{
				meta:  domain.ChatMeta{ID: key, Title: c.Title},
				input: &tg.InputPeerChat{ChatID: c.ID},
			}
		case *tg.Channel:
			key := ChannelKey(c.ID)
			idx.entries[key] = peerEntry{
				meta:    domain.ChatMeta{ID: key, Title: c.Title, Username: c.Username},
				input:   &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash},
				channel: &tg.InputChannel{ChannelID: c.ID, AccessHash: c.AccessHash},
			}
		case *tg.ChannelForbidden:
			key := ChannelKey(c.ID)
			idx.entries[key] = peerEntry{
				meta:    domain.ChatMeta{ID: key, Title: c.Title},
				input:   &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash},
				channel: &tg.InputChannel{ChannelID: c.ID, AccessHash: c.AccessHash},
			}
		}
	}
}

func (idx *peerIndex) addUsers(users []tg.UserClass) {
	for _, u := range users {
		user, ok := u.(*tg.User)
		if !ok {
			continue
		}
		key := UserKey(user.ID)
		var input tg.InputPeerClass = &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
		if user.Self {
			input = &tg.InputPeerSelf{}
		}
		idx.entries[key] = peerEntry{
			meta:  domain.ChatMeta{ID: key, FirstName: user.FirstName, Username: user.Username},
			input: input,
		}
	}
}

func (idx *peerIndex) addDialogs(dialogs []tg.DialogClass) {
	for _, d := range dialogs {
		dialog, ok := d.(*tg.Dialog)
		if !ok {
			continue
		}
		if key, ok := PeerKey(dialog.Peer); ok {
			idx.dialogs = append(idx.dialogs, key)
		}
	}
}

func (idx *peerIndex) lookup(key int64) (peerEntry, bool) {
	e, ok := idx.entries[key]
	return e, ok
}

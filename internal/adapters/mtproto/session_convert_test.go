package mtproto

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gotd/td/session"
)

type storedSession struct {
	Version int
	Data    session.Data
}

func decodeStored(t *testing.T, raw []byte) session.Data {
	t.Helper()
	var s storedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("разбор результата: %v", err)
	}
	if s.Version != 1 {
		t.Fatalf("ожидали версию 1, получили %d", s.Version)
	}
	return s.Data
}

func testKey() []byte {
	key := make([]byte, 256)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestNormalizeKeepsGotdJSON(t *testing.T) {
	raw := []byte(`{"Version":1,"Data":{"DC":2}}`)
	out, converted, err := NormalizeSessionBytes(append([]byte("  "), raw...))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if converted {
		t.Fatalf("JSON gotd не требует конвертации")
	}
	if !bytes.Equal(out, raw) {
		t.Fatalf("ожидали исходный JSON, получили %s", out)
	}
}

func TestNormalizeTelethonJSONRows(t *testing.T) {
	raw, _ := json.Marshal([]map[string]any{
		{"dc_id": 2, "server_address": "149.154.167.51", "port": 443, "auth_key": hex.EncodeToString(testKey())},
	})
	out, converted, err := NormalizeSessionBytes(raw)
	if err != nil || !converted {
		t.Fatalf("ожидали конвертацию, err=%v", err)
	}
	data := decodeStored(t, out)
	if data.DC != 2 || data.Addr != "149.154.167.51:443" {
		t.Fatalf("неожиданные данные DC: %+v", data)
	}
	if !bytes.Equal(data.AuthKey, testKey()) || len(data.AuthKeyID) != 8 {
		t.Fatalf("ключ авторизации не сохранён")
	}
}

func TestNormalizePyrogramString(t *testing.T) {
	buf := make([]byte, 0, 271)
	buf = append(buf, 4)
	buf = binary.BigEndian.AppendUint32(buf, 12345)
	buf = append(buf, 0)
	buf = append(buf, testKey()...)
	buf = binary.BigEndian.AppendUint64(buf, 777)
	buf = append(buf, 0)
	str := base64.URLEncoding.EncodeToString(buf)

	out, converted, err := NormalizeSessionBytes([]byte(str + "\n"))
	if err != nil || !converted {
		t.Fatalf("ожидали конвертацию, err=%v", err)
	}
	data := decodeStored(t, out)
	if data.DC != 4 || data.Addr != "149.154.167.91:443" {
		t.Fatalf("неожиданные данные DC: %+v", data)
	}
	if !bytes.Equal(data.AuthKey, testKey()) {
		t.Fatalf("ключ авторизации не совпадает")
	}
}

func TestNormalizeOldPyrogramTestMode(t *testing.T) {
	buf := []byte{2, 1}
	buf = append(buf, testKey()...)
	buf = binary.BigEndian.AppendUint32(buf, 777)
	buf = append(buf, 0)
	str := base64.RawURLEncoding.EncodeToString(buf)

	out, _, err := NormalizeSessionBytes([]byte(str))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if data := decodeStored(t, out); data.Addr != "149.154.167.40:443" {
		t.Fatalf("ожидали тестовый DC 2, получили %s", data.Addr)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	if _, _, err := NormalizeSessionBytes([]byte("not a session")); !errors.Is(err, ErrUnsupportedSessionFormat) {
		t.Fatalf("ожидали ErrUnsupportedSessionFormat, получили %v", err)
	}
	if _, _, err := NormalizeSessionBytes([]byte("  ")); err == nil {
		t.Fatalf("пустая сессия должна отклоняться")
	}
}

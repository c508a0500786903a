package mtproto

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/session"
	"github.com/gotd/td/tg"
)

// ErrUnsupportedSessionFormat возвращается, если формат сессии не распознан.
var ErrUnsupportedSessionFormat = errors.New("unsupported MTProto session format")

const sessionPort = 443

// Адреса дата-центров Telegram для строковых сессий Pyrogram, в которых нет адреса.
var (
	prodDCs = map[int]string{
		1: "149.154.175.53",
		2: "149.154.167.51",
		3: "149.154.175.100",
		4: "149.154.167.91",
		5: "91.108.56.130",
	}
	testDCs = map[int]string{
		1: "149.154.175.10",
		2: "149.154.167.40",
		3: "149.154.175.117",
	}
)

// NormalizeSessionBytes приводит сессию к JSON формату gotd session.Storage.
// Поддерживаются JSON gotd, строковые сессии Telethon и Pyrogram, а также
// экспорт Telethon в JSON. Второе значение сообщает, была ли конвертация.
func NormalizeSessionBytes(raw []byte) ([]byte, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, errors.New("MTProto session is empty")
	}

	var gotd struct {
		Version int `json:"Version"`
	}
	if err := json.Unmarshal(trimmed, &gotd); err == nil && gotd.Version != 0 {
		return append([]byte(nil), trimmed...), false, nil
	}

	converters := []func([]byte) ([]byte, error){
		convertTelethonAccountJSON,
		convertTelethonSessionJSON,
		convertTelethonString,
		convertPyrogramString,
	}
	for _, convert := range converters {
		if converted, err := convert(trimmed); err == nil {
			return converted, true, nil
		}
	}
	return nil, false, ErrUnsupportedSessionFormat
}

func convertTelethonAccountJSON(raw []byte) ([]byte, error) {
	var account struct {
		ExtraParams string `json:"extra_params"`
	}
	if err := json.Unmarshal(raw, &account); err != nil {
		return nil, err
	}
	if account.ExtraParams == "" {
		return nil, errors.New("telethon account JSON lacks extra_params")
	}
	return convertTelethonString([]byte(account.ExtraParams))
}

func convertTelethonSessionJSON(raw []byte) ([]byte, error) {
	var rows []struct {
		DCID          int    `json:"dc_id"`
		ServerAddress string `json:"server_address"`
		Port          int    `json:"port"`
		AuthKey       string `json:"auth_key"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.AuthKey == "" || row.ServerAddress == "" || row.Port == 0 {
			continue
		}
		key, err := hex.DecodeString(strings.Trim(strings.TrimSpace(row.AuthKey), "'\""))
		if err != nil {
			return nil, fmt.Errorf("decode auth_key: %w", err)
		}
		return encodeSessionData(row.DCID, row.ServerAddress, row.Port, key)
	}
	return nil, errors.New("telethon session JSON has no usable rows")
}

func convertTelethonString(raw []byte) ([]byte, error) {
	candidate := unquote(raw)
	if candidate == "" {
		return nil, errors.New("telethon session string is empty")
	}
	data, err := session.TelethonSession(candidate)
	if err != nil {
		return nil, err
	}
	if data.Config.ThisDC == 0 {
		data.Config.ThisDC = data.DC
	}
	if data.Addr != "" && len(data.Config.DCOptions) == 0 {
		if host, portStr, err := net.SplitHostPort(data.Addr); err == nil {
			if port, err := strconv.Atoi(portStr); err == nil {
				data.Config.DCOptions = []tg.DCOption{{ID: data.DC, IPAddress: host, Port: port}}
			}
		}
	}
	return marshalSessionData(*data)
}

// convertPyrogramString разбирает строковую сессию Pyrogram.
// Длина 271 байт у текущего формата (dc, api_id, test_mode, key, user_id, is_bot),
// 263 и 267 у старых форматов без api_id.
func convertPyrogramString(raw []byte) ([]byte, error) {
	candidate := unquote(raw)
	if candidate == "" {
		return nil, errors.New("pyrogram session string is empty")
	}
	candidate = strings.TrimRight(candidate, "=")
	decoded, err := base64.RawURLEncoding.DecodeString(candidate)
	if err != nil {
		return nil, fmt.Errorf("decode pyrogram session: %w", err)
	}

	var (
		dcID     int
		testMode bool
		key      []byte
	)
	switch len(decoded) {
	case 271:
		dcID, testMode, key = int(decoded[0]), decoded[5] != 0, decoded[6:262]
	case 263, 267:
		dcID, testMode, key = int(decoded[0]), decoded[1] != 0, decoded[2:258]
	default:
		return nil, fmt.Errorf("unexpected pyrogram session length: %d bytes", len(decoded))
	}

	dcs := prodDCs
	if testMode {
		dcs = testDCs
	}
	host, ok := dcs[dcID]
	if !ok {
		return nil, fmt.Errorf("unknown data center %d", dcID)
	}
	return encodeSessionData(dcID, host, sessionPort, key)
}

func encodeSessionData(dcID int, host string, port int, rawKey []byte) ([]byte, error) {
	var key crypto.Key
	if len(rawKey) != len(key) {
		return nil, fmt.Errorf("unexpected auth_key length: %d bytes", len(rawKey))
	}
	copy(key[:], rawKey)
	id := key.WithID().ID

	data := session.Data{
		Config: session.Config{
			ThisDC:    dcID,
			DCOptions: []tg.DCOption{{ID: dcID, IPAddress: host, Port: port}},
		},
		DC:        dcID,
		Addr:      net.JoinHostPort(host, strconv.Itoa(port)),
		AuthKey:   append([]byte(nil), key[:]...),
		AuthKeyID: append([]byte(nil), id[:]...),
	}
	return marshalSessionData(data)
}

func marshalSessionData(data session.Data) ([]byte, error) {
	payload := struct {
		Version int          `json:"Version"`
		Data    session.Data `json:"Data"`
	}{
		Version: 1,
		Data:    data,
	}
	return json.Marshal(payload)
}

func unquote(raw []byte) string {
	return strings.Trim(strings.TrimSpace(string(raw)), "\"'\n\r\t")
}

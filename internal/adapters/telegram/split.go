package telegram

import (
	"strings"
	"unicode/utf16"
)

// MessageLimit ограничивает длину одного сообщения Telegram в единицах UTF-16.
const MessageLimit = 4096

// SplitMessage делит текст на части не длиннее MessageLimit.
// Части собираются из целых строк, поэтому строка ссылки не разрывается;
// строка длиннее лимита режется по символам.
func SplitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if TextLen(text) <= MessageLimit {
		return []string{text}
	}

	var (
		parts []string
		cur   strings.Builder
		size  int
	)
	flush := func() {
		if chunk := strings.Trim(cur.String(), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		cur.Reset()
		size = 0
	}
	for _, line := range strings.Split(text, "\n") {
		for _, piece := range cutUnits(line, MessageLimit) {
			n := TextLen(piece)
			sep := 0
			if size > 0 {
				sep = 1
			}
			if size+sep+n > MessageLimit {
				flush()
				sep = 0
			}
			if sep == 1 {
				cur.WriteByte('\n')
			}
			cur.WriteString(piece)
			size += sep + n
		}
	}
	flush()
	return parts
}

// TextLen возвращает длину текста так, как её считает Telegram: в единицах UTF-16.
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if utf16.IsSurrogate(r) || r < 0x10000 {
		return 1
	}
	return 2
}

// cutUnits режет строку на куски не длиннее limit единиц UTF-16, не разрывая символы.
func cutUnits(s string, limit int) []string {
	if TextLen(s) <= limit {
		return []string{s}
	}
	var (
		out   []string
		start int
		size  int
	)
	for i, r := range s {
		n := runeUnits(r)
		if size+n > limit {
			out = append(out, s[start:i])
			start, size = i, 0
		}
		size += n
	}
	return append(out, s[start:])
}

package digest

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout задаёт формат даты в заголовке дайджеста и в имени журнала.
const DateLayout = "2006-01-02"

// FormatDigest формирует текст дайджеста: заголовок темы, саммари без изменений и блок ссылок.
func FormatDigest(topic string, day time.Time, summary string, links []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 Digest on %s for %s:\n\n", topic, day.Format(DateLayout))
	b.WriteString(summary)
	b.WriteString("\n\n📎 Message links:\n")
	b.WriteString(strings.Join(links, "\n"))
	return b.String()
}

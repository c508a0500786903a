package auditlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tg-topic-digest/internal/domain"
)

const (
	timestampLayout       = "2006-01-02T15:04:05"
	timestampLayoutMicros = "2006-01-02T15:04:05.000000"
)

// File дописывает записи аудита в журнал logs_{date}.txt. Файл открывается на каждую запись.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile создаёт журнал в каталоге dir.
func NewFile(dir string) *File {
	if dir == "" {
		dir = "."
	}
	return &File{dir: dir}
}

// Path возвращает путь к журналу за дату в формате 2006-01-02.
func (f *File) Path(date string) string {
	return filepath.Join(f.dir, fmt.Sprintf("logs_%s.txt", date))
}

// Record дописывает строку "[timestamp] message".
func (f *File) Record(_ context.Context, record domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.Path(record.Date), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("auditlog: open: %w", err)
	}
	line := fmt.Sprintf("[%s] %s\n", formatTimestamp(record.At), record.Line())
	_, writeErr := file.WriteString(line)
	closeErr := file.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		return fmt.Errorf("auditlog: write: %w", err)
	}
	return nil
}

// formatTimestamp печатает время как isoformat: дробная часть в микросекундах опускается, если она нулевая.
func formatTimestamp(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(timestampLayout)
	}
	return t.Format(timestampLayoutMicros)
}

// Multi рассылает запись во все журналы по порядку и останавливается на первой ошибке.
type Multi []domain.AuditLog

// Record реализует domain.AuditLog.
func (m Multi) Record(ctx context.Context, record domain.AuditRecord) error {
	for _, sink := range m {
		if err := sink.Record(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// Package txlog — кольцевой буфер диагностических событий.
// Реализован как logrus-хук: всё, что пишется в общий лог, попадает и
// сюда, а команда диагностики отдаёт последние записи одним текстом.
// Буфер ограничен по размеру, старые записи вытесняются.
package txlog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultCapacity — сколько последних записей держим.
const DefaultCapacity = 100

// Entry — одна запись буфера.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]string
}

// Ring — кольцевой буфер записей. Потокобезопасен.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewRing создаёт буфер на capacity записей.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Add добавляет запись, вытесняя самую старую при переполнении.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// Entries возвращает записи от старых к новым.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Entry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Dump возвращает содержимое буфера одним человекочитаемым текстом.
// Это не машинный интерфейс — формат под просмотр в поддержке.
func (r *Ring) Dump() string {
	entries := r.Entries()
	if len(entries) == 0 {
		return "журнал пуст"
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s [%s] %s",
			e.Time.Format("2006-01-02 15:04:05"),
			strings.ToUpper(e.Level),
			e.Message,
		))
		if len(e.Fields) > 0 {
			// Стабильный порядок полей
			keys := make([]string, 0, len(e.Fields))
			for k := range e.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				sb.WriteString(fmt.Sprintf(" %s=%s", k, e.Fields[k]))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Levels — реализация logrus.Hook: перехватываем все уровни.
func (r *Ring) Levels() []log.Level {
	return log.AllLevels
}

// Fire — реализация logrus.Hook: копируем запись в буфер.
func (r *Ring) Fire(entry *log.Entry) error {
	fields := make(map[string]string, len(entry.Data))
	for k, v := range entry.Data {
		fields[k] = fmt.Sprintf("%v", v)
	}
	r.Add(Entry{
		Time:    entry.Time,
		Level:   entry.Level.String(),
		Message: entry.Message,
		Fields:  fields,
	})
	return nil
}

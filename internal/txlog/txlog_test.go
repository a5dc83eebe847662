package txlog

import (
	"fmt"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Add(Entry{Message: fmt.Sprintf("msg-%d", i)})
	}

	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("в кольце %d записей, ожидалось 3", len(entries))
	}
	// Старые вытеснены, порядок от старых к новым
	for i, e := range entries {
		want := fmt.Sprintf("msg-%d", i+2)
		if e.Message != want {
			t.Fatalf("entries[%d] = %q, ожидалось %q", i, e.Message, want)
		}
	}
}

func TestRingPartialFill(t *testing.T) {
	r := NewRing(10)
	r.Add(Entry{Message: "a"})
	r.Add(Entry{Message: "b"})

	entries := r.Entries()
	if len(entries) != 2 || entries[0].Message != "a" || entries[1].Message != "b" {
		t.Fatalf("неожиданное содержимое: %+v", entries)
	}
}

func TestDumpFormat(t *testing.T) {
	r := NewRing(5)

	if r.Dump() != "журнал пуст" {
		t.Fatalf("пустой буфер: %q", r.Dump())
	}

	r.Add(Entry{
		Time:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:   "info",
		Message: "Покупка начислена",
		Fields:  map[string]string{"coins": "5", "key": "coin_099:tx-1:1"},
	})

	dump := r.Dump()
	if !strings.Contains(dump, "2026-03-01 12:00:00 [INFO] Покупка начислена") {
		t.Fatalf("неожиданный формат: %q", dump)
	}
	// Поля в стабильном алфавитном порядке
	if !strings.Contains(dump, "coins=5 key=coin_099:tx-1:1") {
		t.Fatalf("поля не отсортированы: %q", dump)
	}
}

func TestRingAsLogrusHook(t *testing.T) {
	r := NewRing(5)

	logger := log.New()
	logger.SetOutput(nullWriter{})
	logger.AddHook(r)

	logger.WithField("product_id", "coin_099").Info("Покупка запрошена")

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("хук не записал событие: %d записей", len(entries))
	}
	e := entries[0]
	if e.Message != "Покупка запрошена" || e.Level != "info" {
		t.Fatalf("неожиданная запись: %+v", e)
	}
	if e.Fields["product_id"] != "coin_099" {
		t.Fatalf("поля не скопировались: %+v", e.Fields)
	}
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

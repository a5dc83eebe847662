package purchase

import (
	"context"
	"testing"
	"time"
)

func TestMemoryJournalRecordLoad(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()

	if err := j.Record(ctx, "coin_099:tx-1:1", "coin_099"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Повторная запись того же ключа — no-op
	if err := j.Record(ctx, "coin_099:tx-1:1", "coin_099"); err != nil {
		t.Fatalf("повторный Record: %v", err)
	}

	keys, err := j.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(keys) != 1 || keys[0] != "coin_099:tx-1:1" {
		t.Fatalf("неожиданные ключи: %v", keys)
	}
}

func TestMemoryJournalPrune(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()

	j.Record(ctx, "old", "coin_099")
	j.keys["old"] = time.Now().Add(-48 * time.Hour)
	j.Record(ctx, "fresh", "coin_199")

	removed, err := j.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("удалено %d записей, ожидалась 1", removed)
	}
	keys, _ := j.Load(ctx)
	if len(keys) != 1 || keys[0] != "fresh" {
		t.Fatalf("неожиданные ключи после чистки: %v", keys)
	}
}

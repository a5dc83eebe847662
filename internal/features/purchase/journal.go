// Package purchase — journal.go, персистентный журнал начисленных покупок.
//
// Основная защита от повторного начисления — множество обработанных
// ключей в памяти, оно живёт в пределах сессии. Журнал — вторая линия:
// ключи переживают рестарт приложения и подгружаются при инициализации,
// на случай если платформа передоставит покупку, начисленную в прошлой
// сессии, раньше, чем успеет завершить её у себя. Журнал подчищается
// по сроку давности фоновой задачей.
package purchase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal — хранилище ключей уже начисленных покупок.
type Journal interface {
	// Load возвращает все сохранённые ключи.
	Load(ctx context.Context) ([]string, error)
	// Record сохраняет ключ начисленной покупки.
	Record(ctx context.Context, key, productID string) error
	// Prune удаляет записи старше retention, возвращает число удалённых.
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// JournalRepository — журнал поверх таблицы processed_purchases.
type JournalRepository struct {
	db *pgxpool.Pool
}

// NewJournalRepository создаёт репозиторий журнала.
func NewJournalRepository(db *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{db: db}
}

// Load возвращает все ключи журнала.
func (r *JournalRepository) Load(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT tx_key FROM processed_purchases`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("ошибка сканирования журнала: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Record сохраняет ключ. Повторная запись того же ключа — no-op.
func (r *JournalRepository) Record(ctx context.Context, key, productID string) error {
	query := `
		INSERT INTO processed_purchases (tx_key, product_id)
		VALUES ($1, $2)
		ON CONFLICT (tx_key) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, key, productID); err != nil {
		return fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return nil
}

// Prune удаляет записи старше retention.
func (r *JournalRepository) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := r.db.Exec(ctx,
		`DELETE FROM processed_purchases WHERE credited_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки журнала: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MemoryJournal — журнал в памяти (тесты, запуск без БД).
type MemoryJournal struct {
	mu   sync.Mutex
	keys map[string]time.Time
}

// NewMemoryJournal создаёт пустой журнал.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{keys: make(map[string]time.Time)}
}

func (m *MemoryJournal) Load(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.keys))
	for k := range m.keys {
		out = append(out, k)
	}
	return out, nil
}

func (m *MemoryJournal) Record(ctx context.Context, key, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; !ok {
		m.keys[key] = time.Now()
	}
	return nil
}

func (m *MemoryJournal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	var removed int64
	for k, t := range m.keys {
		if t.Before(cutoff) {
			delete(m.keys, k)
			removed++
		}
	}
	return removed, nil
}

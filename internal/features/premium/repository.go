// Package premium — repository.go работает с таблицей premium_entitlements.
// Запись одна на приложение (id = 1), список разблокированных функций
// хранится как JSONB.
package premium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store — персистентное хранилище разблокировок.
type Store interface {
	// Get возвращает состояние или (nil, nil), если записи ещё нет.
	Get(ctx context.Context) (*Entitlements, error)
	// Set перезаписывает состояние целиком.
	Set(ctx context.Context, e Entitlements) error
	// Delete удаляет запись (полный сброс).
	Delete(ctx context.Context) error
}

// Repository — реализация Store поверх PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий премиум-функций.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает сохранённое состояние разблокировок.
func (r *Repository) Get(ctx context.Context) (*Entitlements, error) {
	query := `
		SELECT unlocked_features, advanced_stats_active
		FROM premium_entitlements WHERE id = 1
	`
	var raw []byte
	var e Entitlements
	err := r.db.QueryRow(ctx, query).Scan(&raw, &e.IsAdvancedStatsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения разблокировок: %w", err)
	}
	if err := json.Unmarshal(raw, &e.UnlockedFeatures); err != nil {
		return nil, fmt.Errorf("ошибка разбора списка функций: %w", err)
	}
	return &e, nil
}

// Set перезаписывает состояние разблокировок.
func (r *Repository) Set(ctx context.Context, e Entitlements) error {
	features := e.UnlockedFeatures
	if features == nil {
		features = []string{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("ошибка сериализации списка функций: %w", err)
	}

	query := `
		INSERT INTO premium_entitlements (id, unlocked_features, advanced_stats_active, updated_at)
		VALUES (1, $1::jsonb, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET unlocked_features = $1::jsonb, advanced_stats_active = $2, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, raw, e.IsAdvancedStatsActive); err != nil {
		return fmt.Errorf("ошибка записи разблокировок: %w", err)
	}
	return nil
}

// Delete удаляет запись разблокировок.
func (r *Repository) Delete(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM premium_entitlements WHERE id = 1`); err != nil {
		return fmt.Errorf("ошибка удаления разблокировок: %w", err)
	}
	return nil
}

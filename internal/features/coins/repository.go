// Package coins — repository.go выполняет все операции с таблицей
// premium_wallet. Кошелёк один на приложение — в таблице ровно одна
// строка (id = 1). Денежные мутации выполняются в транзакциях БД
// с блокировкой строки, чтобы чтение-изменение-запись было атомарным.
package coins

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository предоставляет методы для работы с кошельком в PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий кошелька.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает сохранённый баланс или (nil, nil), если кошелька ещё нет.
func (r *Repository) Get(ctx context.Context) (*Balance, error) {
	query := `SELECT amount, last_updated FROM premium_wallet WHERE id = 1`
	var b Balance
	err := r.db.QueryRow(ctx, query).Scan(&b.Amount, &b.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кошелька: %w", err)
	}
	return &b, nil
}

// Set перезаписывает баланс целиком.
func (r *Repository) Set(ctx context.Context, b Balance) error {
	query := `
		INSERT INTO premium_wallet (id, amount, last_updated)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET amount = $1, last_updated = $2
	`
	if _, err := r.db.Exec(ctx, query, b.Amount, b.LastUpdated); err != nil {
		return fmt.Errorf("ошибка записи кошелька: %w", err)
	}
	return nil
}

// Delete удаляет запись кошелька.
func (r *Repository) Delete(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM premium_wallet WHERE id = 1`); err != nil {
		return fmt.Errorf("ошибка удаления кошелька: %w", err)
	}
	return nil
}

// Credit атомарно начисляет amount монет и возвращает новый баланс.
func (r *Repository) Credit(ctx context.Context, amount int64) (Balance, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Balance{}, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureWallet(ctx, tx); err != nil {
		return Balance{}, err
	}

	var b Balance
	err = tx.QueryRow(ctx, `
		UPDATE premium_wallet
		SET amount = amount + $1, last_updated = NOW()
		WHERE id = 1
		RETURNING amount, last_updated
	`, amount).Scan(&b.Amount, &b.LastUpdated)
	if err != nil {
		return Balance{}, fmt.Errorf("ошибка начисления: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Balance{}, fmt.Errorf("ошибка фиксации начисления: %w", err)
	}
	return b, nil
}

// Debit атомарно списывает amount монет.
// Проверка достаточности и списание выполняются под блокировкой строки
// (FOR UPDATE): при нехватке средств баланс не меняется.
func (r *Repository) Debit(ctx context.Context, amount int64) (Balance, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Balance{}, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureWallet(ctx, tx); err != nil {
		return Balance{}, false, err
	}

	var b Balance
	err = tx.QueryRow(ctx, `
		SELECT amount, last_updated FROM premium_wallet WHERE id = 1 FOR UPDATE
	`).Scan(&b.Amount, &b.LastUpdated)
	if err != nil {
		return Balance{}, false, fmt.Errorf("ошибка чтения баланса: %w", err)
	}

	if b.Amount < amount {
		// Недостаточно средств — мутации нет
		return b, false, tx.Commit(ctx)
	}

	err = tx.QueryRow(ctx, `
		UPDATE premium_wallet
		SET amount = amount - $1, last_updated = NOW()
		WHERE id = 1
		RETURNING amount, last_updated
	`, amount).Scan(&b.Amount, &b.LastUpdated)
	if err != nil {
		return Balance{}, false, fmt.Errorf("ошибка списания: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Balance{}, false, fmt.Errorf("ошибка фиксации списания: %w", err)
	}
	return b, true, nil
}

// ensureWallet создаёт строку кошелька с нулевым балансом, если её нет.
func ensureWallet(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO premium_wallet (id, amount, last_updated)
		VALUES (1, 0, NOW())
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания кошелька: %w", err)
	}
	return nil
}

// Package coins — store.go определяет контракт хранилища кошелька.
package coins

import "context"

// Store — персистентное хранилище баланса.
// Get/Set/Delete — простая key-value семантика; Credit и Debit
// выполняют чтение-изменение-запись атомарно, чтобы две параллельные
// операции не потеряли чужую мутацию.
type Store interface {
	// Get возвращает сохранённый баланс или (nil, nil), если записи нет.
	Get(ctx context.Context) (*Balance, error)

	// Set перезаписывает баланс целиком.
	Set(ctx context.Context, b Balance) error

	// Delete удаляет запись кошелька (полный сброс).
	Delete(ctx context.Context) error

	// Credit атомарно добавляет amount и возвращает новый баланс.
	Credit(ctx context.Context, amount int64) (Balance, error)

	// Debit атомарно списывает amount, если средств достаточно.
	// При нехватке возвращает (текущий баланс, false, nil) без мутации.
	Debit(ctx context.Context, amount int64) (Balance, bool, error)
}

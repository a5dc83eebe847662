// Package coins управляет кошельком премиум-монет.
// models.go описывает структуру баланса.
package coins

import "time"

// Balance — единственный агрегат кошелька.
// Меняется только начислением и списанием; после каждой мутации
// сохраняется в хранилище. Инвариант: Amount >= 0 всегда.
type Balance struct {
	Amount      int64     `json:"amount"`
	LastUpdated time.Time `json:"last_updated"`
}

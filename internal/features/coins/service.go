// Package coins — service.go содержит бизнес-логику кошелька.
// Валидация сумм, начисление, списание с проверкой достаточности.
package coins

import (
	"context"

	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/common"
)

// Service управляет кошельком премиум-монет.
type Service struct {
	store Store
}

// NewService создаёт новый сервис кошелька.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Balance возвращает текущий баланс.
// Если кошелёк ещё не создавался — нулевой баланс, это не ошибка.
func (s *Service) Balance(ctx context.Context) (Balance, error) {
	b, err := s.store.Get(ctx)
	if err != nil {
		return Balance{}, err
	}
	if b == nil {
		return Balance{}, nil
	}
	return *b, nil
}

// Credit начисляет amount монет и возвращает новый баланс.
// reason попадает в лог — по нему в диагностике видно, откуда пришли монеты.
func (s *Service) Credit(ctx context.Context, amount int64, reason string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, common.ErrInvalidAmount
	}

	b, err := s.store.Credit(ctx, amount)
	if err != nil {
		return Balance{}, err
	}

	log.WithFields(log.Fields{
		"amount":  amount,
		"balance": b.Amount,
		"reason":  reason,
	}).Info("Монеты начислены")
	return b, nil
}

// Spend списывает amount монет.
// Возвращает false без ошибки, если монет не хватает — баланс при этом
// не меняется. Вызывающий обязан проверить результат перед тем, как
// считать списание состоявшимся.
func (s *Service) Spend(ctx context.Context, amount int64) (bool, error) {
	if amount <= 0 {
		return false, common.ErrInvalidAmount
	}

	b, ok, err := s.store.Debit(ctx, amount)
	if err != nil {
		return false, err
	}
	if !ok {
		log.WithFields(log.Fields{
			"requested": amount,
			"balance":   b.Amount,
		}).Warn("Списание отклонено: недостаточно монет")
		return false, nil
	}

	log.WithFields(log.Fields{
		"amount":  amount,
		"balance": b.Amount,
	}).Info("Монеты списаны")
	return true, nil
}

// Reset полностью удаляет кошелёк. Используется поддержкой.
func (s *Service) Reset(ctx context.Context) error {
	return s.store.Delete(ctx)
}

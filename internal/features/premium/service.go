// Package premium — service.go содержит логику разблокировки функций.
// Разблокировка: проверить каталог → списать монеты → записать.
// Повторная разблокировка уже открытой функции монет не стоит.
package premium

import (
	"context"

	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/common"
	"habit-premium-bot/internal/features/coins"
)

// Service управляет премиум-функциями.
type Service struct {
	store Store
	coins *coins.Service
}

// NewService создаёт сервис премиум-функций.
func NewService(store Store, coinsService *coins.Service) *Service {
	return &Service{store: store, coins: coinsService}
}

// Entitlements возвращает текущее состояние разблокировок.
// Отсутствие записи — пустое состояние, не ошибка.
func (s *Service) Entitlements(ctx context.Context) (Entitlements, error) {
	e, err := s.store.Get(ctx)
	if err != nil {
		return Entitlements{}, err
	}
	if e == nil {
		return Entitlements{}, nil
	}
	return *e, nil
}

// Unlock разблокирует премиум-функцию, списывая её стоимость с кошелька.
// Возвращает false без ошибки, если монет не хватило.
// Уже разблокированная функция повторно не оплачивается.
func (s *Service) Unlock(ctx context.Context, featureID string) (bool, error) {
	feature, ok := Features[featureID]
	if !ok {
		return false, common.ErrUnknownFeature
	}

	ents, err := s.Entitlements(ctx)
	if err != nil {
		return false, err
	}
	if ents.Has(featureID) {
		return true, nil
	}

	paid, err := s.coins.Spend(ctx, feature.Cost)
	if err != nil {
		return false, err
	}
	if !paid {
		return false, nil
	}

	ents.UnlockedFeatures = append(ents.UnlockedFeatures, featureID)
	if featureID == FeatureAdvancedStats {
		ents.IsAdvancedStatsActive = true
	}
	if err := s.store.Set(ctx, ents); err != nil {
		// Монеты уже списаны, а запись не удалась — это надо видеть в логах
		log.WithError(err).WithField("feature", featureID).
			Error("Разблокировка оплачена, но не сохранена")
		return false, err
	}

	log.WithFields(log.Fields{
		"feature": featureID,
		"cost":    feature.Cost,
	}).Info("Премиум-функция разблокирована")
	return true, nil
}

// SetAdvancedStatsActive включает/выключает расширенную статистику.
// Флаг активации хранится отдельно от факта разблокировки.
func (s *Service) SetAdvancedStatsActive(ctx context.Context, active bool) error {
	ents, err := s.Entitlements(ctx)
	if err != nil {
		return err
	}
	ents.IsAdvancedStatsActive = active
	return s.store.Set(ctx, ents)
}

// Reset полностью удаляет состояние разблокировок.
func (s *Service) Reset(ctx context.Context) error {
	return s.store.Delete(ctx)
}

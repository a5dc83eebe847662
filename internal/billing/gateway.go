// Package billing — gateway.go, адаптер между моделью покупок приложения
// и сырым API платформы. Владеет жизненным циклом соединения и каталогом.
package billing

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Gateway оборачивает Platform: следит за состоянием соединения,
// переводит ошибки платформы в типизированные и держит последний
// загруженный каталог для валидации запросов на покупку.
type Gateway struct {
	platform Platform

	mu        sync.Mutex
	connected bool
	catalog   map[string]Product
}

// NewGateway создаёт адаптер над платформой.
func NewGateway(platform Platform) *Gateway {
	return &Gateway{
		platform: platform,
		catalog:  make(map[string]Product),
	}
}

// Connect открывает биллинг-сессию.
// false без ошибки — платформа штатно сообщила, что соединения нет
// (например, нет аккаунта магазина). Ошибка — транспортный сбой.
func (g *Gateway) Connect(ctx context.Context) (bool, error) {
	ok, err := g.platform.StartConnection(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	g.mu.Lock()
	g.connected = ok
	g.mu.Unlock()

	log.WithField("connected", ok).Info("Биллинг-сессия открыта")
	return ok, nil
}

// Disconnect закрывает сессию и забывает каталог.
// Повторные вызовы безопасны.
func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return nil
	}
	g.connected = false
	g.catalog = make(map[string]Product)
	g.mu.Unlock()

	if err := g.platform.EndConnection(ctx); err != nil {
		return fmt.Errorf("ошибка закрытия биллинг-сессии: %w", err)
	}
	log.Info("Биллинг-сессия закрыта")
	return nil
}

// Connected сообщает, открыта ли сессия.
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// ListProducts загружает каталог по списку идентификаторов.
// Возвращает CatalogError, если магазин вернул пустой или неполный
// список — вызывающему важно знать, каких именно id не хватает.
func (g *Gateway) ListProducts(ctx context.Context, ids []string) ([]Product, error) {
	if !g.Connected() {
		return nil, ErrNotInitialized
	}

	products, err := g.platform.QueryProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки каталога: %w", err)
	}

	found := make(map[string]bool, len(products))
	for _, p := range products {
		found[p.ProductID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(products) == 0 || len(missing) > 0 {
		return nil, &CatalogError{Requested: ids, Missing: missing}
	}

	// Запоминаем каталог для валидации RequestPurchase
	g.mu.Lock()
	g.catalog = make(map[string]Product, len(products))
	for _, p := range products {
		g.catalog[p.ProductID] = p
	}
	g.mu.Unlock()

	log.WithField("count", len(products)).Debug("Каталог загружен")
	return products, nil
}

// RequestPurchase запускает покупку товара.
// Прямой возврат — лишь один из двух каналов доставки результата:
// платформа продублирует его событием в Updates. Дедупликацией
// занимается движок сверки, не шлюз.
func (g *Gateway) RequestPurchase(ctx context.Context, productID string) (*Purchase, error) {
	if !g.Connected() {
		return nil, ErrNotInitialized
	}

	g.mu.Lock()
	_, known := g.catalog[productID]
	g.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	purchase, err := g.platform.LaunchPurchase(ctx, productID)
	if err != nil {
		if Classify(err) == KindAlreadyOwned {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyOwned, productID)
		}
		return nil, fmt.Errorf("ошибка покупки %s: %w", productID, err)
	}
	if purchase == nil {
		return nil, ErrInvalidResult
	}

	log.WithFields(log.Fields{
		"product_id":     productID,
		"transaction_id": purchase.TransactionID,
	}).Info("Покупка запрошена")
	return purchase, nil
}

// ListUnfinished возвращает незавершённые покупки платформы.
// Результат не кэшируется: он нужен только для восстановления.
func (g *Gateway) ListUnfinished(ctx context.Context) ([]*Purchase, error) {
	if !g.Connected() {
		return nil, ErrNotInitialized
	}
	purchases, err := g.platform.QueryUnfinished(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка списка незавершённых покупок: %w", err)
	}
	return purchases, nil
}

// Acknowledge подтверждает покупку.
// No-op, если токена нет или покупка уже подтверждена.
func (g *Gateway) Acknowledge(ctx context.Context, p *Purchase) error {
	if p.PurchaseToken == "" || p.Acknowledged() {
		return nil
	}
	if err := g.platform.Acknowledge(ctx, p); err != nil {
		return fmt.Errorf("ошибка подтверждения %s: %w", p.Key(), err)
	}
	return nil
}

// Finish завершает транзакцию на стороне платформы, после чего товар
// снова доступен для покупки. Вызывается ровно один раз после
// успешного начисления.
func (g *Gateway) Finish(ctx context.Context, p *Purchase, consumable bool) error {
	if !consumable {
		// Непотребляемые товары достаточно подтвердить
		return g.Acknowledge(ctx, p)
	}
	if err := g.platform.Consume(ctx, p); err != nil {
		return fmt.Errorf("ошибка потребления %s: %w", p.Key(), err)
	}
	return nil
}

// Updates — канал событий покупок от платформы.
// Единственный получатель — движок сверки.
func (g *Gateway) Updates() <-chan Event {
	return g.platform.Events()
}

// Package billing — platform.go определяет границу с «сырым» API платформы.
package billing

import "context"

// Event — асинхронное уведомление платформы о покупке.
// Платформа сообщает результат покупки дважды: прямым возвратом
// LaunchPurchase и событием в этом канале. Обе доставки — один и тот же
// факт; склейку делает движок сверки по ключу покупки.
type Event struct {
	Purchase *Purchase // Заполнено при успешной покупке
	Err      error     // Заполнено, если платформа сообщила об ошибке
}

// Platform — сырой интерфейс биллинга платформы.
// Реализации: Sandbox (встроенная, для разработки и тестов) и мост
// к реальному магазину на стороне мобильного клиента.
type Platform interface {
	// StartConnection открывает биллинг-сессию.
	// (false, nil) — платформа штатно сообщила об отсутствии соединения;
	// ошибка возвращается только при транспортном сбое.
	StartConnection(ctx context.Context) (bool, error)

	// EndConnection закрывает сессию. Повторный вызов — no-op.
	EndConnection(ctx context.Context) error

	// QueryProducts возвращает каталог по списку идентификаторов.
	QueryProducts(ctx context.Context, ids []string) ([]Product, error)

	// LaunchPurchase запускает покупку товара.
	// Результат также будет продублирован событием в Events.
	LaunchPurchase(ctx context.Context, productID string) (*Purchase, error)

	// QueryUnfinished возвращает покупки, которые платформа
	// ещё считает незавершёнными (не потреблёнными).
	QueryUnfinished(ctx context.Context) ([]*Purchase, error)

	// Acknowledge подтверждает получение покупки.
	Acknowledge(ctx context.Context, p *Purchase) error

	// Consume помечает покупку завершённой, после чего товар
	// можно купить снова.
	Consume(ctx context.Context, p *Purchase) error

	// Events — канал событий покупок. Один получатель; канал живёт
	// всё время жизни платформы, переподключение его не пересоздаёт.
	Events() <-chan Event
}

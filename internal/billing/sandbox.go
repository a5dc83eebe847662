// Package billing — sandbox.go, встроенная платформа-песочница.
// Имитирует магазин: держит каталог, асинхронно доставляет события
// покупок и отслеживает незавершённые транзакции. Используется в
// разработке и тестах, когда реального моста к магазину нет.
package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sandbox — реализация Platform в памяти.
type Sandbox struct {
	delay time.Duration // Задержка перед доставкой события покупки

	mu         sync.Mutex
	connected  bool
	catalog    map[string]Product
	unfinished map[string]*Purchase // По ключу покупки
	seq        int64

	events chan Event
}

// NewSandbox создаёт песочницу с заданным каталогом.
// delay — пауза между запросом покупки и асинхронным событием о ней,
// имитирует поведение реального магазина.
func NewSandbox(catalog []Product, delay time.Duration) *Sandbox {
	byID := make(map[string]Product, len(catalog))
	for _, p := range catalog {
		byID[p.ProductID] = p
	}
	return &Sandbox{
		delay:      delay,
		catalog:    byID,
		unfinished: make(map[string]*Purchase),
		events:     make(chan Event, 16),
	}
}

// StartConnection открывает сессию песочницы. Всегда успешно.
func (s *Sandbox) StartConnection(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return true, nil
}

// EndConnection закрывает сессию. Канал событий не закрывается —
// он переживает переподключение.
func (s *Sandbox) EndConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// QueryProducts возвращает запрошенные товары из каталога песочницы.
func (s *Sandbox) QueryProducts(ctx context.Context, ids []string) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, fmt.Errorf("sandbox: нет соединения")
	}

	var out []Product
	for _, id := range ids {
		if p, ok := s.catalog[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// LaunchPurchase создаёт покупку. Если по этому товару уже висит
// незавершённая покупка — отвечает как реальный магазин: «уже куплено».
// Иначе регистрирует покупку и через delay доставляет событие.
func (s *Sandbox) LaunchPurchase(ctx context.Context, productID string) (*Purchase, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil, fmt.Errorf("sandbox: нет соединения")
	}
	if _, ok := s.catalog[productID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("sandbox: товар %s не найден", productID)
	}
	for _, p := range s.unfinished {
		if p.ProductID == productID {
			s.mu.Unlock()
			return nil, fmt.Errorf("sandbox: item already owned: %s", productID)
		}
	}

	s.seq++
	purchase := &Purchase{
		ProductID:          productID,
		TransactionID:      fmt.Sprintf("sbx-%d", s.seq),
		TransactionDate:    time.Now().UnixMilli(),
		TransactionReceipt: fmt.Sprintf("sandbox-receipt-%d", s.seq),
		PurchaseToken:      fmt.Sprintf("sbx-token-%d", s.seq),
		Android: &AndroidDetails{
			PurchaseState: StatePurchased,
		},
	}
	s.unfinished[purchase.Key()] = purchase
	s.mu.Unlock()

	// Второй канал доставки того же факта — как у реальной платформы
	go func() {
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		s.emit(Event{Purchase: clonePurchase(purchase)})
	}()

	return clonePurchase(purchase), nil
}

// QueryUnfinished возвращает копии незавершённых покупок.
func (s *Sandbox) QueryUnfinished(ctx context.Context) ([]*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Purchase, 0, len(s.unfinished))
	for _, p := range s.unfinished {
		out = append(out, clonePurchase(p))
	}
	return out, nil
}

// Acknowledge помечает покупку подтверждённой.
func (s *Sandbox) Acknowledge(ctx context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.unfinished[p.Key()]
	if !ok {
		return fmt.Errorf("sandbox: покупка %s не найдена", p.Key())
	}
	if stored.Android != nil {
		stored.Android.IsAcknowledged = true
	}
	return nil
}

// Consume завершает покупку: товар снова можно купить.
func (s *Sandbox) Consume(ctx context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.unfinished[p.Key()]; !ok {
		return fmt.Errorf("sandbox: покупка %s не найдена", p.Key())
	}
	delete(s.unfinished, p.Key())
	return nil
}

// Events — канал событий покупок.
func (s *Sandbox) Events() <-chan Event {
	return s.events
}

func (s *Sandbox) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// Получатель не разбирает события — не блокируемся,
		// покупка всё равно останется в незавершённых
		log.Warn("sandbox: канал событий переполнен, событие отброшено")
	}
}

func clonePurchase(p *Purchase) *Purchase {
	cp := *p
	if p.Android != nil {
		a := *p.Android
		cp.Android = &a
	}
	if p.IOS != nil {
		i := *p.IOS
		cp.IOS = &i
	}
	return &cp
}

// Package purchase — engine.go, движок сверки покупок.
//
// Движок превращает сырое событие платформы о покупке в долговечное
// начисление монет. Конвейер одной покупки:
//
//	получена → валидация → (отклонена: не оплачена | дубликат)
//	валидация → начисление → подтверждение → потребление → готово
//
// Гарантия идемпотентности: один ключ покупки начисляется не более
// одного раза за сессию, сколько бы путей доставки его ни принесло
// (прямой возврат запроса, событие платформы, обход незавершённых).
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/billing"
	"habit-premium-bot/internal/config"
	"habit-premium-bot/internal/features/coins"
)

// State — состояние движка, наблюдаемое интерфейсом.
type State struct {
	IsLoading     bool
	Error         string
	IsInitialized bool
}

// ProductNotAvailableError — запрошенного товара нет в свежем каталоге.
// Available перечисляет товары, которые реально доступны.
type ProductNotAvailableError struct {
	ProductID string
	Available []string
}

func (e *ProductNotAvailableError) Error() string {
	return fmt.Sprintf("товар %s недоступен, в каталоге: [%s]",
		e.ProductID, strings.Join(e.Available, ", "))
}

// Engine — движок сверки покупок.
// Владеет сессией шлюза и множеством обработанных ключей; никакого
// глобального состояния — всё, что нужно, передано явно.
type Engine struct {
	gateway *billing.Gateway
	coins   *coins.Service
	journal Journal
	cfg     *config.Config

	mu        sync.Mutex
	processed map[string]struct{}
	products  []billing.Product
	state     State
	onChange  func(State)

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewEngine создаёт движок сверки.
func NewEngine(gateway *billing.Gateway, coinsService *coins.Service, journal Journal, cfg *config.Config) *Engine {
	return &Engine{
		gateway:   gateway,
		coins:     coinsService,
		journal:   journal,
		cfg:       cfg,
		processed: make(map[string]struct{}),
	}
}

// OnStateChange регистрирует подписчика на изменения состояния.
// Подписчик один; повторная регистрация заменяет предыдущего.
func (e *Engine) OnStateChange(fn func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// State возвращает снимок текущего состояния.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Products возвращает последний загруженный каталог.
func (e *Engine) Products() []billing.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]billing.Product(nil), e.products...)
}

// setState применяет мутацию состояния и уведомляет подписчика.
func (e *Engine) setState(mutate func(*State)) {
	e.mu.Lock()
	mutate(&e.state)
	snapshot := e.state
	notify := e.onChange
	e.mu.Unlock()

	if notify != nil {
		notify(snapshot)
	}
}

// Initialize открывает биллинг-сессию, подгружает журнал прошлых
// сессий в множество дедупликации, загружает каталог и запускает
// цикл обработки событий платформы.
//
// false без ошибки — платформа штатно сообщила об отсутствии
// соединения; интерфейс может повторить инициализацию вручную.
func (e *Engine) Initialize(ctx context.Context) (bool, error) {
	e.setState(func(st *State) { st.IsLoading = true; st.Error = "" })

	ok, err := e.gateway.Connect(ctx)
	if err != nil {
		e.setState(func(st *State) {
			st.IsLoading = false
			st.IsInitialized = false
			st.Error = err.Error()
		})
		return false, err
	}
	if !ok {
		log.Warn("Платформа сообщила об отсутствии биллинг-соединения")
		e.setState(func(st *State) { st.IsLoading = false; st.IsInitialized = false })
		return false, nil
	}

	// Вторая линия дедупликации: ключи, начисленные в прошлых сессиях
	keys, err := e.journal.Load(ctx)
	if err != nil {
		log.WithError(err).Warn("Журнал начислений не загрузился, дедупликация только в памяти")
	} else {
		e.mu.Lock()
		for _, k := range keys {
			e.processed[k] = struct{}{}
		}
		e.mu.Unlock()
		log.WithField("keys", len(keys)).Debug("Журнал начислений загружен")
	}

	e.setState(func(st *State) { st.IsInitialized = true })

	if err := e.LoadProducts(ctx); err != nil {
		// Каталог перечитается перед покупкой, инициализацию не валим
		log.WithError(err).Warn("Каталог не загрузился при инициализации")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.loopCancel = cancel
	e.loopDone = make(chan struct{})
	go e.run(loopCtx)

	e.setState(func(st *State) { st.IsLoading = false })
	log.Info("Движок сверки покупок инициализирован")
	return true, nil
}

// Disconnect останавливает цикл событий и закрывает сессию.
// Множество обработанных ключей живёт ровно одну сессию и здесь
// сбрасывается. Повторные вызовы безопасны.
func (e *Engine) Disconnect(ctx context.Context) error {
	if e.loopCancel != nil {
		e.loopCancel()
		<-e.loopDone
		e.loopCancel = nil
	}

	err := e.gateway.Disconnect(ctx)

	e.mu.Lock()
	e.processed = make(map[string]struct{})
	e.products = nil
	e.mu.Unlock()

	e.setState(func(st *State) { st.IsInitialized = false })
	return err
}

// run — единственный потребитель канала событий платформы.
// Завершается отменой контекста или закрытием канала.
func (e *Engine) run(ctx context.Context) {
	defer close(e.loopDone)

	updates := e.gateway.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-updates:
			if !ok {
				log.Info("Канал событий платформы закрыт")
				return
			}
			if ev.Err != nil {
				log.WithError(ev.Err).Error("Платформа сообщила об ошибке покупки")
				e.setState(func(st *State) { st.Error = ev.Err.Error() })
				continue
			}
			if _, err := e.process(ctx, ev.Purchase); err != nil {
				log.WithError(err).Error("Ошибка обработки события покупки")
			}
		}
	}
}

// LoadProducts перечитывает каталог из магазина.
func (e *Engine) LoadProducts(ctx context.Context) error {
	products, err := e.gateway.ListProducts(ctx, ProductIDs())
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.products = products
	e.mu.Unlock()
	return nil
}

// PurchaseCoins запускает покупку монетного пакета.
//
// Протокол:
//  1. Перечитать каталог — защита от устаревшего списка товаров.
//  2. Убедиться, что товар в каталоге есть.
//  3. Обойти незавершённые покупки: остаток прерванной сессии иначе
//     заблокирует новую покупку ответом «уже куплено».
//  4. Запросить покупку. Успех — когда платформа приняла запрос;
//     само начисление придёт асинхронно через канал событий.
//
// «Уже куплено» на свежий запрос — не сбой: законное начисление
// придёт через повторный обход, вызывающему сообщаем успех.
func (e *Engine) PurchaseCoins(ctx context.Context, productID string) error {
	if !e.State().IsInitialized {
		e.setState(func(st *State) { st.Error = billing.ErrNotInitialized.Error() })
		return billing.ErrNotInitialized
	}

	e.setState(func(st *State) { st.IsLoading = true; st.Error = "" })

	err := e.purchase(ctx, productID)
	if err != nil {
		e.setState(func(st *State) { st.IsLoading = false; st.Error = err.Error() })
		return err
	}

	e.setState(func(st *State) { st.IsLoading = false })
	return nil
}

func (e *Engine) purchase(ctx context.Context, productID string) error {
	// Свежий каталог обязателен: без него не отличить «товара нет»
	// от «каталог протух»
	if err := e.LoadProducts(ctx); err != nil {
		var catErr *billing.CatalogError
		if errors.As(err, &catErr) {
			// Пустой или неполный каталог: покупка не запускается,
			// в ошибке — то, что магазин реально вернул
			missing := make(map[string]bool, len(catErr.Missing))
			for _, id := range catErr.Missing {
				missing[id] = true
			}
			var inStore []string
			for _, id := range catErr.Requested {
				if !missing[id] {
					inStore = append(inStore, id)
				}
			}
			return &ProductNotAvailableError{ProductID: productID, Available: inStore}
		}
		return fmt.Errorf("каталог недоступен: %w", err)
	}

	available := ProductIDs()
	if _, ok := CoinsConfig[productID]; !ok {
		return &ProductNotAvailableError{ProductID: productID, Available: available}
	}
	found := false
	for _, p := range e.Products() {
		if p.ProductID == productID {
			found = true
			break
		}
	}
	if !found {
		var inCatalog []string
		for _, p := range e.Products() {
			inCatalog = append(inCatalog, p.ProductID)
		}
		return &ProductNotAvailableError{ProductID: productID, Available: inCatalog}
	}

	// Обход до покупки: доначисляет остатки прерванной сессии
	if _, err := e.sweep(ctx); err != nil {
		log.WithError(err).Warn("Обход незавершённых покупок перед запросом не удался")
	}

	var direct *billing.Purchase
	err := withRetry(ctx, e.cfg.BillingPurchaseRetries, e.cfg.BillingRetryBackoff, "request_purchase", func() error {
		p, reqErr := e.gateway.RequestPurchase(ctx, productID)
		if reqErr != nil {
			return reqErr
		}
		direct = p
		return nil
	})
	if err != nil {
		if billing.Classify(err) == billing.KindAlreadyOwned {
			// Восстановимая ситуация: начисление подберёт обход
			log.WithField("product_id", productID).
				Info("Платформа ответила «уже куплено», запускаем обход")
			if _, swErr := e.sweep(ctx); swErr != nil {
				log.WithError(swErr).Error("Обход после «уже куплено» не удался")
			}
			return nil
		}
		return err
	}

	// Прямой возврат — первый из двух каналов доставки; событие
	// платформы по тому же ключу будет отсеяно дедупликацией
	if _, err := e.process(ctx, direct); err != nil {
		log.WithError(err).Error("Ошибка обработки прямого результата покупки")
	}
	return nil
}

// RestorePurchases прогоняет все незавершённые покупки платформы
// через конвейер и возвращает суммарно начисленные монеты.
func (e *Engine) RestorePurchases(ctx context.Context) (int64, error) {
	if !e.State().IsInitialized {
		return 0, billing.ErrNotInitialized
	}

	e.setState(func(st *State) { st.IsLoading = true; st.Error = "" })

	total, err := e.sweep(ctx)
	if err != nil {
		e.setState(func(st *State) { st.IsLoading = false; st.Error = err.Error() })
		return total, err
	}

	e.setState(func(st *State) { st.IsLoading = false })
	log.WithField("coins", total).Info("Восстановление покупок завершено")
	return total, nil
}

// SweepUnfinished — публичный обход незавершённых покупок.
// Вызывается планировщиком и командой поддержки.
func (e *Engine) SweepUnfinished(ctx context.Context) (int64, error) {
	if !e.State().IsInitialized {
		return 0, billing.ErrNotInitialized
	}
	return e.sweep(ctx)
}

// sweep прогоняет каждую незавершённую покупку через конвейер.
// Ошибка одной покупки не прерывает обход остальных.
func (e *Engine) sweep(ctx context.Context) (int64, error) {
	purchases, err := e.gateway.ListUnfinished(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, p := range purchases {
		credited, err := e.process(ctx, p)
		if err != nil {
			log.WithError(err).WithField("key", p.Key()).Error("Ошибка обработки незавершённой покупки")
			continue
		}
		total += credited
	}

	if len(purchases) > 0 {
		log.WithFields(log.Fields{
			"purchases": len(purchases),
			"coins":     total,
		}).Info("Обход незавершённых покупок завершён")
	}
	return total, nil
}

// process — конвейер одной покупки: валидация → начисление →
// подтверждение → потребление. Возвращает число начисленных монет
// (0 — покупка отклонена без последствий).
//
// Ошибки подтверждения и потребления не откатывают начисление:
// корректность баланса важнее бухгалтерии платформы, а недоделанную
// покупку позже доберёт обход.
func (e *Engine) process(ctx context.Context, p *billing.Purchase) (int64, error) {
	if p == nil || p.ProductID == "" {
		log.Warn("Пустая покупка отклонена")
		return 0, nil
	}

	logger := log.WithFields(log.Fields{
		"product_id":     p.ProductID,
		"transaction_id": p.TransactionID,
	})

	// Валидация: не оплачено — не начисляем и не потребляем.
	// PENDING оставляем будущему обходу, ключ не занимаем.
	if p.State() != billing.StatePurchased {
		logger.WithField("state", p.State()).Info("Покупка не оплачена, отклонена без начисления")
		return 0, nil
	}

	key := p.Key()

	// Проверка дубликата и захват ключа — один атомарный шаг:
	// ключ занят до первого блокирующего вызова, чтобы параллельная
	// доставка того же факта увидела его уже занятым
	e.mu.Lock()
	if _, dup := e.processed[key]; dup {
		e.mu.Unlock()
		logger.WithField("key", key).Warn("Дубликат покупки, начисление пропущено")
		return 0, nil
	}
	pack, known := CoinsConfig[p.ProductID]
	if !known {
		e.mu.Unlock()
		// Рассинхронизация каталога и конфигурации: не начисляем,
		// не потребляем, ключ не занимаем
		logger.Warn("Неизвестный товар, покупка оставлена без обработки")
		return 0, nil
	}
	e.processed[key] = struct{}{}
	e.mu.Unlock()

	amount := pack.Coins * int64(p.Qty())

	// Начисление. Если запись в кошелёк не удалась — освобождаем ключ,
	// иначе повторная доставка будет навсегда подавлена
	if _, err := e.coins.Credit(ctx, amount, "покупка "+p.ProductID); err != nil {
		e.mu.Lock()
		delete(e.processed, key)
		e.mu.Unlock()
		logger.WithError(err).Error("Начисление не удалось, ключ освобождён")
		return 0, err
	}

	if err := e.journal.Record(ctx, key, p.ProductID); err != nil {
		// Сессионная дедупликация уже защищает; журнал — вторая линия
		logger.WithError(err).Warn("Ключ не записался в журнал")
	}

	// Подтверждение. Сбой здесь обычно временный и платформенный:
	// начисление не откатываем, позже покупку доберёт обход
	if err := e.gateway.Acknowledge(ctx, p); err != nil {
		logger.WithError(err).Error("Подтверждение покупки не удалось")
	}

	// Потребление: товар снова становится доступным для покупки
	err := withRetry(ctx, e.cfg.BillingConsumeRetries, e.cfg.BillingRetryBackoff, "consume", func() error {
		return e.gateway.Finish(ctx, p, true)
	})
	if err != nil {
		logger.WithError(err).Error("Потребление покупки не удалось, баланс не откатывается")
	}

	logger.WithFields(log.Fields{
		"coins": amount,
		"key":   key,
	}).Info("Покупка начислена")
	return amount, nil
}

// PruneJournal удаляет из журнала записи старше срока хранения.
func (e *Engine) PruneJournal(ctx context.Context) (int64, error) {
	retention := time.Duration(e.cfg.JournalRetentionDays) * 24 * time.Hour
	return e.journal.Prune(ctx, retention)
}

// IsRecoverable сообщает, относится ли ошибка к восстановимым
// (пользователю можно предложить повторить попытку).
func IsRecoverable(err error) bool {
	var pna *ProductNotAvailableError
	if errors.As(err, &pna) {
		return false
	}
	return billing.Classify(err) == billing.KindTransient
}

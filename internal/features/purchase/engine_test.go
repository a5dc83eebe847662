package purchase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"habit-premium-bot/internal/billing"
	"habit-premium-bot/internal/config"
	"habit-premium-bot/internal/features/coins"
)

// fakePlatform — управляемая платформа для тестов движка.
// По умолчанию ведёт себя как исправный магазин с полным каталогом.
type fakePlatform struct {
	launchErr   error
	noProducts  bool
	missingFrom map[string]bool // товары, которых магазин «не знает»
	unfinished  []*billing.Purchase
	seq         int64
	events      chan billing.Event
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{events: make(chan billing.Event, 16)}
}

func (f *fakePlatform) StartConnection(ctx context.Context) (bool, error) { return true, nil }
func (f *fakePlatform) EndConnection(ctx context.Context) error           { return nil }

func (f *fakePlatform) QueryProducts(ctx context.Context, ids []string) ([]billing.Product, error) {
	if f.noProducts {
		return nil, nil
	}
	var out []billing.Product
	for _, id := range ids {
		if f.missingFrom[id] {
			continue
		}
		out = append(out, billing.Product{ProductID: id, Title: id, LocalizedPrice: "$0.00"})
	}
	return out, nil
}

func (f *fakePlatform) LaunchPurchase(ctx context.Context, productID string) (*billing.Purchase, error) {
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	f.seq++
	return &billing.Purchase{
		ProductID:       productID,
		TransactionID:   fmt.Sprintf("tx-%d", f.seq),
		TransactionDate: time.Now().UnixMilli(),
		PurchaseToken:   fmt.Sprintf("token-%d", f.seq),
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}, nil
}

func (f *fakePlatform) QueryUnfinished(ctx context.Context) ([]*billing.Purchase, error) {
	return f.unfinished, nil
}

func (f *fakePlatform) Acknowledge(ctx context.Context, p *billing.Purchase) error { return nil }
func (f *fakePlatform) Consume(ctx context.Context, p *billing.Purchase) error     { return nil }
func (f *fakePlatform) Events() <-chan billing.Event                               { return f.events }

// failingStore — кошелёк, у которого не проходят первые failures начислений.
type failingStore struct {
	coins.Store
	failures int
}

func (s *failingStore) Credit(ctx context.Context, amount int64) (coins.Balance, error) {
	if s.failures > 0 {
		s.failures--
		return coins.Balance{}, errors.New("БД недоступна")
	}
	return s.Store.Credit(ctx, amount)
}

func testConfig() *config.Config {
	return &config.Config{
		BillingPurchaseRetries: 1,
		BillingConsumeRetries:  1,
		BillingRetryBackoff:    time.Millisecond,
		JournalRetentionDays:   30,
	}
}

func newTestEngine(t *testing.T, platform billing.Platform) (*Engine, *coins.Service, Journal) {
	t.Helper()
	coinsService := coins.NewService(coins.NewMemoryStore())
	journal := NewMemoryJournal()
	engine := NewEngine(billing.NewGateway(platform), coinsService, journal, testConfig())

	ok, err := engine.Initialize(context.Background())
	if err != nil || !ok {
		t.Fatalf("Initialize: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { engine.Disconnect(context.Background()) })
	return engine, coinsService, journal
}

func mustBalance(t *testing.T, svc *coins.Service) int64 {
	t.Helper()
	b, err := svc.Balance(context.Background())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return b.Amount
}

func TestPurchaseCreditsCoins(t *testing.T) {
	engine, coinsService, _ := newTestEngine(t, newFakePlatform())

	if err := engine.PurchaseCoins(context.Background(), ProductCoin099); err != nil {
		t.Fatalf("PurchaseCoins: %v", err)
	}

	want := CoinsConfig[ProductCoin099].Coins
	if got := mustBalance(t, coinsService); got != want {
		t.Fatalf("баланс %d, ожидалось %d", got, want)
	}
}

func TestDuplicateDeliveryCreditedOnce(t *testing.T) {
	engine, coinsService, _ := newTestEngine(t, newFakePlatform())
	ctx := context.Background()

	p := &billing.Purchase{
		ProductID:       ProductCoin099,
		TransactionID:   "tx-dup",
		TransactionDate: 1700000000000,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}

	// Прямой результат и событие платформы несут один и тот же факт
	if _, err := engine.process(ctx, p); err != nil {
		t.Fatalf("первая доставка: %v", err)
	}
	credited, err := engine.process(ctx, p)
	if err != nil {
		t.Fatalf("вторая доставка: %v", err)
	}
	if credited != 0 {
		t.Fatalf("дубликат начислил %d монет", credited)
	}

	want := CoinsConfig[ProductCoin099].Coins
	if got := mustBalance(t, coinsService); got != want {
		t.Fatalf("баланс %d, ожидалось %d", got, want)
	}
}

func TestQuantityMultipliesCredit(t *testing.T) {
	engine, coinsService, _ := newTestEngine(t, newFakePlatform())

	// Количество единиц умножает начисление
	p := &billing.Purchase{
		ProductID:       ProductCoin099,
		TransactionID:   "tx-qty",
		TransactionDate: 1700000000000,
		Quantity:        3,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}
	credited, err := engine.process(context.Background(), p)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	want := CoinsConfig[ProductCoin099].Coins * 3
	if credited != want {
		t.Fatalf("credited=%d, ожидалось %d", credited, want)
	}
	if got := mustBalance(t, coinsService); got != want {
		t.Fatalf("баланс %d, ожидалось %d", got, want)
	}
}

func TestPendingPurchaseNotCredited(t *testing.T) {
	engine, coinsService, _ := newTestEngine(t, newFakePlatform())
	ctx := context.Background()

	p := &billing.Purchase{
		ProductID:       ProductCoin199,
		TransactionID:   "tx-pending",
		TransactionDate: 1700000000000,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePending},
	}

	credited, err := engine.process(ctx, p)
	if err != nil || credited != 0 {
		t.Fatalf("PENDING: credited=%d err=%v", credited, err)
	}
	if got := mustBalance(t, coinsService); got != 0 {
		t.Fatalf("PENDING не должен начислять, баланс %d", got)
	}

	// Ключ не занят: когда оплата пройдёт, та же транзакция начислится
	p.Android.PurchaseState = billing.StatePurchased
	credited, err = engine.process(ctx, p)
	if err != nil {
		t.Fatalf("оплаченная доставка: %v", err)
	}
	if want := CoinsConfig[ProductCoin199].Coins; credited != want {
		t.Fatalf("credited=%d, ожидалось %d", credited, want)
	}
}

func TestUnknownProductNotCredited(t *testing.T) {
	engine, coinsService, _ := newTestEngine(t, newFakePlatform())

	p := &billing.Purchase{
		ProductID:       "coin_777",
		TransactionID:   "tx-unknown",
		TransactionDate: 1700000000000,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}
	credited, err := engine.process(context.Background(), p)
	if err != nil || credited != 0 {
		t.Fatalf("неизвестный товар: credited=%d err=%v", credited, err)
	}
	if got := mustBalance(t, coinsService); got != 0 {
		t.Fatalf("неизвестный товар не должен начислять, баланс %d", got)
	}
}

func TestCreditFailureReleasesKey(t *testing.T) {
	platform := newFakePlatform()
	store := &failingStore{Store: coins.NewMemoryStore(), failures: 1}
	coinsService := coins.NewService(store)
	engine := NewEngine(billing.NewGateway(platform), coinsService, NewMemoryJournal(), testConfig())

	ctx := context.Background()
	if ok, err := engine.Initialize(ctx); err != nil || !ok {
		t.Fatalf("Initialize: ok=%v err=%v", ok, err)
	}
	defer engine.Disconnect(ctx)

	p := &billing.Purchase{
		ProductID:       ProductCoin099,
		TransactionID:   "tx-retry",
		TransactionDate: 1700000000000,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}

	if _, err := engine.process(ctx, p); err == nil {
		t.Fatal("ожидалась ошибка начисления")
	}

	// Ключ освобождён — повторная доставка начисляет
	credited, err := engine.process(ctx, p)
	if err != nil {
		t.Fatalf("повторная доставка: %v", err)
	}
	if want := CoinsConfig[ProductCoin099].Coins; credited != want {
		t.Fatalf("credited=%d, ожидалось %d", credited, want)
	}
}

func TestAlreadyOwnedRecoversViaSweep(t *testing.T) {
	platform := newFakePlatform()
	// Остаток прерванной сессии: оплаченная, но не потреблённая покупка
	platform.unfinished = []*billing.Purchase{{
		ProductID:       ProductCoin499,
		TransactionID:   "tx-stale",
		TransactionDate: 1700000000000,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}}
	platform.launchErr = errors.New("item already owned: " + ProductCoin499)

	engine, coinsService, _ := newTestEngine(t, platform)

	// «Уже куплено» — не сбой: начисление приходит через обход
	if err := engine.PurchaseCoins(context.Background(), ProductCoin499); err != nil {
		t.Fatalf("PurchaseCoins: %v", err)
	}
	want := CoinsConfig[ProductCoin499].Coins
	if got := mustBalance(t, coinsService); got != want {
		t.Fatalf("баланс %d, ожидалось %d", got, want)
	}
}

func TestRestorePurchases(t *testing.T) {
	platform := newFakePlatform()
	platform.unfinished = []*billing.Purchase{
		{
			ProductID:       ProductCoin049,
			TransactionID:   "tx-a",
			TransactionDate: 1700000000000,
			Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
		},
		{
			ProductID:       ProductCoin199,
			TransactionID:   "tx-b",
			TransactionDate: 1700000000001,
			Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
		},
	}

	engine, coinsService, _ := newTestEngine(t, platform)

	total, err := engine.RestorePurchases(context.Background())
	if err != nil {
		t.Fatalf("RestorePurchases: %v", err)
	}
	want := CoinsConfig[ProductCoin049].Coins + CoinsConfig[ProductCoin199].Coins
	if total != want {
		t.Fatalf("восстановлено %d, ожидалось %d", total, want)
	}
	if got := mustBalance(t, coinsService); got != want {
		t.Fatalf("баланс %d, ожидалось %d", got, want)
	}

	// Повторное восстановление — дубликаты, ничего не доначисляется
	total, err = engine.RestorePurchases(context.Background())
	if err != nil || total != 0 {
		t.Fatalf("повторное восстановление: total=%d err=%v", total, err)
	}
}

func TestJournalSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	journal := NewMemoryJournal()
	stale := &billing.Purchase{
		ProductID:       ProductCoin099,
		TransactionID:   "tx-persist",
		TransactionDate: 1700000000000,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}

	// Первая сессия: покупка начислена и записана в журнал
	first := NewEngine(billing.NewGateway(newFakePlatform()),
		coins.NewService(coins.NewMemoryStore()), journal, testConfig())
	if ok, err := first.Initialize(ctx); err != nil || !ok {
		t.Fatalf("Initialize: ok=%v err=%v", ok, err)
	}
	if _, err := first.process(ctx, stale); err != nil {
		t.Fatalf("process: %v", err)
	}
	first.Disconnect(ctx)

	// Вторая сессия: та же покупка передоставлена платформой
	coinsService := coins.NewService(coins.NewMemoryStore())
	second := NewEngine(billing.NewGateway(newFakePlatform()), coinsService, journal, testConfig())
	if ok, err := second.Initialize(ctx); err != nil || !ok {
		t.Fatalf("Initialize: ok=%v err=%v", ok, err)
	}
	defer second.Disconnect(ctx)

	credited, err := second.process(ctx, stale)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if credited != 0 {
		t.Fatalf("журнал не защитил от повторного начисления: %d", credited)
	}
	if got := mustBalance(t, coinsService); got != 0 {
		t.Fatalf("баланс %d, ожидался 0", got)
	}
}

func TestPurchaseUnknownProductID(t *testing.T) {
	engine, _, _ := newTestEngine(t, newFakePlatform())

	err := engine.PurchaseCoins(context.Background(), "coin_777")
	var notAvail *ProductNotAvailableError
	if !errors.As(err, &notAvail) {
		t.Fatalf("ожидался ProductNotAvailableError, получено %v", err)
	}
	if notAvail.ProductID != "coin_777" || len(notAvail.Available) == 0 {
		t.Fatalf("некорректная ошибка: %+v", notAvail)
	}
	if IsRecoverable(err) {
		t.Fatal("недоступный товар — невосстановимая ошибка")
	}
}

func TestEmptyCatalogBlocksPurchase(t *testing.T) {
	platform := newFakePlatform()
	platform.noProducts = true
	engine, coinsService, _ := newTestEngine(t, platform)

	// Пустой каталог: покупка не должна дойти до запроса к платформе
	err := engine.PurchaseCoins(context.Background(), ProductCoin099)
	var notAvail *ProductNotAvailableError
	if !errors.As(err, &notAvail) {
		t.Fatalf("ожидался ProductNotAvailableError, получено %v", err)
	}
	if len(notAvail.Available) != 0 {
		t.Fatalf("пустой каталог не должен давать доступных товаров: %v", notAvail.Available)
	}
	if got := mustBalance(t, coinsService); got != 0 {
		t.Fatalf("баланс изменился: %d", got)
	}
}

func TestPartialCatalogReportsAvailable(t *testing.T) {
	platform := newFakePlatform()
	platform.missingFrom = map[string]bool{ProductCoin499: true}
	engine, _, _ := newTestEngine(t, platform)

	// Неполный каталог: в ошибке перечислено то, что магазин вернул
	err := engine.PurchaseCoins(context.Background(), ProductCoin499)
	var notAvail *ProductNotAvailableError
	if !errors.As(err, &notAvail) {
		t.Fatalf("ожидался ProductNotAvailableError, получено %v", err)
	}
	if len(notAvail.Available) != len(ProductIDs())-1 {
		t.Fatalf("доступные товары: %v", notAvail.Available)
	}
	for _, id := range notAvail.Available {
		if id == ProductCoin499 {
			t.Fatal("отсутствующий товар попал в список доступных")
		}
	}
}

func TestPurchaseRequiresInitialization(t *testing.T) {
	engine := NewEngine(billing.NewGateway(newFakePlatform()),
		coins.NewService(coins.NewMemoryStore()), NewMemoryJournal(), testConfig())

	if err := engine.PurchaseCoins(context.Background(), ProductCoin099); !errors.Is(err, billing.ErrNotInitialized) {
		t.Fatalf("ожидался ErrNotInitialized, получено %v", err)
	}
	if _, err := engine.RestorePurchases(context.Background()); !errors.Is(err, billing.ErrNotInitialized) {
		t.Fatalf("ожидался ErrNotInitialized, получено %v", err)
	}
}

func TestAsyncEventCredited(t *testing.T) {
	platform := newFakePlatform()
	_, coinsService, _ := newTestEngine(t, platform)

	// Событие платформы без предшествующего прямого результата
	platform.events <- billing.Event{Purchase: &billing.Purchase{
		ProductID:       ProductCoin049,
		TransactionID:   "tx-async",
		TransactionDate: 1700000000000,
		Android:         &billing.AndroidDetails{PurchaseState: billing.StatePurchased},
	}}

	want := CoinsConfig[ProductCoin049].Coins
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mustBalance(t, coinsService) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("событие не начислило монеты, баланс %d", mustBalance(t, coinsService))
}

func TestDisconnectResetsSession(t *testing.T) {
	engine, _, _ := newTestEngine(t, newFakePlatform())
	ctx := context.Background()

	if err := engine.PurchaseCoins(ctx, ProductCoin099); err != nil {
		t.Fatalf("PurchaseCoins: %v", err)
	}
	if err := engine.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if engine.State().IsInitialized {
		t.Fatal("после Disconnect движок не должен быть инициализирован")
	}
	if len(engine.Products()) != 0 {
		t.Fatal("после Disconnect каталог должен быть сброшен")
	}
}

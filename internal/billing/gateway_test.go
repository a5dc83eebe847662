package billing

import (
	"context"
	"errors"
	"testing"
)

func testCatalog() []Product {
	return []Product{
		{ProductID: "coin_099", Title: "Пак «5 монет»", LocalizedPrice: "$0.99"},
		{ProductID: "coin_199", Title: "Пак «12 монет»", LocalizedPrice: "$1.99"},
	}
}

func newTestGateway(t *testing.T) (*Gateway, *Sandbox) {
	t.Helper()
	sandbox := NewSandbox(testCatalog(), 0)
	gw := NewGateway(sandbox)
	ok, err := gw.Connect(context.Background())
	if err != nil || !ok {
		t.Fatalf("Connect: ok=%v err=%v", ok, err)
	}
	return gw, sandbox
}

func TestGatewayRequiresConnection(t *testing.T) {
	gw := NewGateway(NewSandbox(testCatalog(), 0))
	ctx := context.Background()

	if _, err := gw.ListProducts(ctx, []string{"coin_099"}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("ожидался ErrNotInitialized, получено %v", err)
	}
	if _, err := gw.RequestPurchase(ctx, "coin_099"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("ожидался ErrNotInitialized, получено %v", err)
	}
	if _, err := gw.ListUnfinished(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("ожидался ErrNotInitialized, получено %v", err)
	}
}

func TestGatewayListProductsMissing(t *testing.T) {
	gw, _ := newTestGateway(t)

	_, err := gw.ListProducts(context.Background(), []string{"coin_099", "coin_777"})
	var catErr *CatalogError
	if !errors.As(err, &catErr) {
		t.Fatalf("ожидался CatalogError, получено %v", err)
	}
	if len(catErr.Missing) != 1 || catErr.Missing[0] != "coin_777" {
		t.Fatalf("неожиданный список отсутствующих: %v", catErr.Missing)
	}
}

func TestGatewayRequestPurchase(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.ListProducts(ctx, []string{"coin_099", "coin_199"}); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}

	p, err := gw.RequestPurchase(ctx, "coin_099")
	if err != nil {
		t.Fatalf("RequestPurchase: %v", err)
	}
	if p.ProductID != "coin_099" || p.TransactionID == "" {
		t.Fatalf("некорректный результат покупки: %+v", p)
	}
	if p.State() != StatePurchased {
		t.Fatal("песочница должна возвращать оплаченную покупку")
	}
}

func TestGatewayRequestPurchaseUnknownProduct(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.ListProducts(ctx, []string{"coin_099", "coin_199"}); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if _, err := gw.RequestPurchase(ctx, "coin_777"); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("ожидался ErrUnknownProduct, получено %v", err)
	}
}

func TestGatewayAlreadyOwned(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.ListProducts(ctx, []string{"coin_099", "coin_199"}); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if _, err := gw.RequestPurchase(ctx, "coin_099"); err != nil {
		t.Fatalf("первая покупка: %v", err)
	}

	// Непотреблённая покупка блокирует повторную — как в реальном магазине
	_, err := gw.RequestPurchase(ctx, "coin_099")
	if !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("ожидался ErrAlreadyOwned, получено %v", err)
	}
	if Classify(err) != KindAlreadyOwned {
		t.Fatal("ошибка должна классифицироваться как AlreadyOwned")
	}
}

func TestGatewayFinishConsumesPurchase(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if _, err := gw.ListProducts(ctx, []string{"coin_099", "coin_199"}); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	p, err := gw.RequestPurchase(ctx, "coin_099")
	if err != nil {
		t.Fatalf("RequestPurchase: %v", err)
	}

	if err := gw.Acknowledge(ctx, p); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if err := gw.Finish(ctx, p, true); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	unfinished, err := gw.ListUnfinished(ctx)
	if err != nil {
		t.Fatalf("ListUnfinished: %v", err)
	}
	if len(unfinished) != 0 {
		t.Fatalf("после потребления незавершённых быть не должно: %d", len(unfinished))
	}

	// После потребления товар снова доступен
	if _, err := gw.RequestPurchase(ctx, "coin_099"); err != nil {
		t.Fatalf("повторная покупка после потребления: %v", err)
	}
}

func TestGatewayDisconnectIdempotent(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	if err := gw.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := gw.Disconnect(ctx); err != nil {
		t.Fatalf("повторный Disconnect должен быть no-op: %v", err)
	}
	if gw.Connected() {
		t.Fatal("после Disconnect сессия должна быть закрыта")
	}
}

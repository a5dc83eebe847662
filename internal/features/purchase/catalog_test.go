package purchase

import "testing"

func TestCoinsConfig(t *testing.T) {
	cases := []struct {
		productID string
		coins     int64
	}{
		{ProductCoin049, 2},
		{ProductCoin099, 5},
		{ProductCoin199, 12},
		{ProductCoin499, 30},
	}
	for _, c := range cases {
		pack, ok := CoinsConfig[c.productID]
		if !ok {
			t.Fatalf("товар %s отсутствует в конфигурации", c.productID)
		}
		if pack.Coins != c.coins {
			t.Fatalf("%s: %d монет, ожидалось %d", c.productID, pack.Coins, c.coins)
		}
	}
}

func TestProductIDsStableOrder(t *testing.T) {
	ids := ProductIDs()
	if len(ids) != len(CoinsConfig) {
		t.Fatalf("ProductIDs вернул %d товаров, в конфигурации %d", len(ids), len(CoinsConfig))
	}
	// Порядок должен быть детерминированным между вызовами
	again := ProductIDs()
	for i := range ids {
		if ids[i] != again[i] {
			t.Fatal("порядок ProductIDs не стабилен")
		}
	}
	for _, id := range ids {
		if _, ok := CoinsConfig[id]; !ok {
			t.Fatalf("ProductIDs вернул неизвестный товар %s", id)
		}
	}
}

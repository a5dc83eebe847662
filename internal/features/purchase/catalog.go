// Package purchase — движок сверки покупок.
// catalog.go содержит статическую таблицу товаров и их монетной
// стоимости. Таблица должна вручную поддерживаться в соответствии
// с консолью платформы — это входные данные, а не производное
// состояние.
package purchase

// Идентификаторы товаров — совпадают с настройкой в консоли магазина.
const (
	ProductCoin049 = "coin_049" // $0.49 = 2 монеты
	ProductCoin099 = "coin_099" // $0.99 = 5 монет
	ProductCoin199 = "coin_199" // $1.99 = 12 монет
	ProductCoin499 = "coin_499" // $4.99 = 30 монет
)

// CoinPack — монетная конфигурация одного товара.
type CoinPack struct {
	Coins        int64   // Сколько монет даёт одна единица товара
	PriceUSD     float64
	DisplayPrice string
}

// CoinsConfig — таблица productId → конфигурация.
// Покупка товара, которого здесь нет, не начисляется и не потребляется:
// это защита от рассинхронизации каталога и конфигурации.
var CoinsConfig = map[string]CoinPack{
	ProductCoin049: {Coins: 2, PriceUSD: 0.49, DisplayPrice: "$0.49"},
	ProductCoin099: {Coins: 5, PriceUSD: 0.99, DisplayPrice: "$0.99"},
	ProductCoin199: {Coins: 12, PriceUSD: 1.99, DisplayPrice: "$1.99"},
	ProductCoin499: {Coins: 30, PriceUSD: 4.99, DisplayPrice: "$4.99"},
}

// ProductIDs возвращает идентификаторы всех товаров в стабильном порядке.
func ProductIDs() []string {
	return []string{ProductCoin049, ProductCoin099, ProductCoin199, ProductCoin499}
}

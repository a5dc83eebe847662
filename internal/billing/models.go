// Package billing — шлюз к биллингу платформы (Google Play / App Store).
// models.go описывает товары и покупки в том виде, в котором с ними
// работает остальное приложение.
package billing

import "fmt"

// Product — позиция каталога платформы. Локально не изменяется,
// перечитывается из магазина по запросу.
type Product struct {
	ProductID      string // Уникальный идентификатор (coin_099, ...)
	Price          string // Цена в минимальных единицах, строкой
	Currency       string // Валюта (USD, RUB, ...)
	Title          string
	Description    string
	LocalizedPrice string // Цена, отформатированная магазином ($0.99)
}

// Состояния покупки, которые сообщает платформа.
const (
	StateUnspecified = 0 // Состояние неизвестно — не начисляем
	StatePurchased   = 1 // Оплачено
	StatePending     = 2 // Ожидает оплаты — оставляем на будущий обход
)

// AndroidDetails — поля покупки, которые присылает только Google Play.
type AndroidDetails struct {
	Data             string
	Signature        string
	IsAcknowledged   bool
	PurchaseState    int
	DeveloperPayload string
}

// IOSDetails — поля покупки, которые присылает только App Store.
type IOSDetails struct {
	OriginalTransactionDate string
	OriginalTransactionID   string
}

// Purchase — одна покупка товара. Живёт только на время обработки:
// после потребления от неё остаётся лишь ключ дедупликации.
//
// Общая часть одинакова для обеих платформ; платформенные поля
// вынесены в отдельные необязательные блоки Android/IOS.
type Purchase struct {
	ProductID          string
	TransactionID      string // Назначается платформой, может повторяться при восстановлении
	TransactionDate    int64  // Unix-время в миллисекундах
	TransactionReceipt string
	PurchaseToken      string // Пустой, если платформа токены не использует
	Quantity           int    // 0 трактуется как 1

	Android *AndroidDetails
	IOS     *IOSDetails
}

// Key возвращает ключ дедупликации покупки.
// Одна и та же покупка может прийти несколькими путями (прямой результат
// запроса, событие платформы, восстановление) — по этому ключу она
// начисляется не более одного раза.
func (p *Purchase) Key() string {
	return fmt.Sprintf("%s:%s:%d", p.ProductID, p.TransactionID, p.TransactionDate)
}

// State возвращает состояние покупки. Если платформа флаг состояния
// не передала (iOS), покупка считается оплаченной.
func (p *Purchase) State() int {
	if p.Android != nil {
		return p.Android.PurchaseState
	}
	return StatePurchased
}

// Acknowledged сообщает, подтверждена ли покупка на стороне платформы.
func (p *Purchase) Acknowledged() bool {
	return p.Android != nil && p.Android.IsAcknowledged
}

// Qty возвращает количество купленных единиц (минимум 1).
func (p *Purchase) Qty() int {
	if p.Quantity <= 0 {
		return 1
	}
	return p.Quantity
}

// Package purchase — handlers.go обрабатывает команды покупок:
// !магазин, !купить, !восстановить.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/billing"
	"habit-premium-bot/internal/common"
)

// Handler обрабатывает команды покупки монет.
type Handler struct {
	engine *Engine
	bot    *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик команд покупок.
func NewHandler(engine *Engine, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{engine: engine, bot: bot}
}

// HandleShop обрабатывает команду !магазин: список паков монет
// из актуального каталога магазина.
func (h *Handler) HandleShop(ctx context.Context, chatID int64) {
	if err := h.engine.LoadProducts(ctx); err != nil {
		log.WithError(err).Warn("Не удалось обновить каталог, показываем кэш")
	}

	products := h.engine.Products()
	if len(products) == 0 {
		h.sendMessage(chatID, "❌ Магазин недоступен, попробуйте позже")
		return
	}

	var sb strings.Builder
	sb.WriteString("🛒 Магазин монет:\n\n")
	for _, p := range products {
		pack, ok := CoinsConfig[p.ProductID]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("• %s — %s за %s\n  !купить %s\n",
			p.Title, common.FormatCoinsAmount(pack.Coins), p.LocalizedPrice, p.ProductID))
	}
	h.sendMessage(chatID, sb.String())
}

// HandleBuy обрабатывает команду !купить <product_id>.
// Сам результат приходит асинхронно: начисление может случиться и
// через событие магазина, поэтому здесь мы сообщаем лишь итог вызова.
func (h *Handler) HandleBuy(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: !купить <product_id>\nСписок: !магазин")
		return
	}

	productID := args[0]
	if err := h.engine.PurchaseCoins(ctx, productID); err != nil {
		h.sendMessage(chatID, h.purchaseErrorText(err))
		return
	}
	h.sendMessage(chatID, "✅ Покупка обработана. Проверьте !баланс")
}

// HandleRestore обрабатывает команду !восстановить: повторная
// обработка незавершённых покупок. Уже зачтённые транзакции
// отфильтрует дедупликация.
func (h *Handler) HandleRestore(ctx context.Context, chatID int64) {
	credited, err := h.engine.RestorePurchases(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка восстановления покупок")
		h.sendMessage(chatID, "❌ Ошибка восстановления покупок")
		return
	}
	if credited == 0 {
		h.sendMessage(chatID, "ℹ️ Новых покупок для восстановления нет")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Восстановлено и зачислено: %s",
		common.FormatCoinsAmount(credited)))
}

// HandleSweep обрабатывает команду !обход: принудительный обход
// незавершённых покупок — то же, что планировщик делает по расписанию.
func (h *Handler) HandleSweep(ctx context.Context, chatID int64) {
	credited, err := h.engine.SweepUnfinished(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка обхода незавершённых покупок")
		h.sendMessage(chatID, "❌ Ошибка обхода незавершённых покупок")
		return
	}
	if credited == 0 {
		h.sendMessage(chatID, "ℹ️ Незавершённых покупок нет")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Обход зачислил %s",
		common.FormatCoinsAmount(credited)))
}

// purchaseErrorText переводит ошибку покупки в текст для оператора.
func (h *Handler) purchaseErrorText(err error) string {
	var notAvail *ProductNotAvailableError
	if errors.As(err, &notAvail) {
		return fmt.Sprintf("❌ Товар %s недоступен. Доступны: %s",
			notAvail.ProductID, strings.Join(notAvail.Available, ", "))
	}

	switch billing.Classify(err) {
	case billing.KindTransient:
		return "⏳ Магазин временно недоступен, попробуйте позже"
	case billing.KindValidation:
		return "❌ Покупка не прошла проверку"
	default:
		if errors.Is(err, billing.ErrNotInitialized) {
			return "❌ Платёжный модуль не инициализирован"
		}
		return "❌ Ошибка покупки"
	}
}

// sendMessage — утилита для отправки сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

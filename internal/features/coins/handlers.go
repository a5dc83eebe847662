// Package coins — handlers.go обрабатывает команды кошелька:
// !баланс и !потратить.
package coins

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/common"
)

// Handler обрабатывает команды кошелька.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик команд кошелька.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleBalance обрабатывает команду !баланс.
//
// Формат ответа:
//
//	💰 Баланс: 150 монет (обновлён 01.03.2026 12:40)
func (h *Handler) HandleBalance(ctx context.Context, chatID int64) {
	balance, err := h.service.Balance(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения баланса")
		h.sendMessage(chatID, "❌ Ошибка получения баланса")
		return
	}

	text := fmt.Sprintf("💰 Баланс: %s", common.FormatBalance(balance.Amount))
	if !balance.LastUpdated.IsZero() {
		text += fmt.Sprintf(" (обновлён %s)", common.FormatDateTime(balance.LastUpdated))
	}
	h.sendMessage(chatID, text)
}

// HandleSpend обрабатывает команду !потратить <сумма>.
// Списание — не исключение, а булев результат: при нехватке монет
// баланс не меняется.
func (h *Handler) HandleSpend(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: !потратить <сумма>")
		return
	}

	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		h.sendMessage(chatID, "❌ Сумма должна быть положительным числом")
		return
	}

	ok, err := h.service.Spend(ctx, amount)
	if err != nil {
		log.WithError(err).Error("Ошибка списания")
		h.sendMessage(chatID, "❌ Ошибка списания")
		return
	}
	if !ok {
		balance, _ := h.service.Balance(ctx)
		h.sendMessage(chatID, fmt.Sprintf("❌ Недостаточно монет: нужно %d, есть %d",
			amount, balance.Amount))
		return
	}

	balance, _ := h.service.Balance(ctx)
	h.sendMessage(chatID, fmt.Sprintf("✅ Списано %s. Баланс: %s",
		common.FormatBalance(amount), common.FormatBalance(balance.Amount)))
}

// sendMessage — утилита для отправки сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

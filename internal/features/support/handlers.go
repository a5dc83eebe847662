// Package support — handlers.go обрабатывает команды поддержки:
// !саппорт, !выход, !диагностика.
package support

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/common"
)

// Handler обрабатывает команды режима поддержки.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик команд поддержки.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleLogin обрабатывает команду !саппорт <пароль>.
// Пароль сразу же удаляется из чата вместе с командой.
func (h *Handler) HandleLogin(ctx context.Context, chatID int64, userID int64, messageID int, args []string) {
	// Сообщение содержит пароль — удаляем в любом случае.
	h.deleteMessage(chatID, messageID)

	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: !саппорт <пароль>")
		return
	}

	err := h.service.VerifyPassword(ctx, userID, args[0])
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTooManyAttempts):
			h.sendMessage(chatID, "🚫 Слишком много неудачных попыток. Подождите час")
		case errors.Is(err, common.ErrWrongPassword):
			h.sendMessage(chatID, "❌ Неверный пароль")
		default:
			log.WithError(err).Error("Ошибка входа в режим поддержки")
			h.sendMessage(chatID, "❌ Ошибка входа")
		}
		return
	}

	h.sendMessage(chatID, "🔓 Режим поддержки активен на 24 часа")
}

// HandleLogout обрабатывает команду !выход.
func (h *Handler) HandleLogout(ctx context.Context, chatID int64, userID int64) {
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).Error("Ошибка выхода из режима поддержки")
		h.sendMessage(chatID, "❌ Ошибка выхода")
		return
	}
	h.sendMessage(chatID, "🔒 Режим поддержки отключён")
}

// HandleDiagnostics обрабатывает команду !диагностика: снимок кошелька,
// премиум-статуса и журнала последних транзакций.
func (h *Handler) HandleDiagnostics(ctx context.Context, chatID int64, userID int64) {
	if !h.service.HasActiveSession(ctx, userID) {
		h.sendMessage(chatID, "🔒 Требуется режим поддержки: !саппорт <пароль>")
		return
	}

	report := h.service.DebugReport(ctx)
	// Telegram не принимает сообщения длиннее 4096 символов.
	const limit = 4000
	for len(report) > limit {
		h.sendMessage(chatID, report[:limit])
		report = report[limit:]
	}
	if report != "" {
		h.sendMessage(chatID, report)
	}
}

func (h *Handler) deleteMessage(chatID int64, messageID int) {
	del := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := h.bot.Request(del); err != nil {
		log.WithError(err).Warn("Не удалось удалить сообщение с паролем")
	}
}

// sendMessage — утилита для отправки сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// Package premium — handlers.go обрабатывает команды премиум-функций:
// !функции и !открыть.
package premium

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/common"
)

// Handler обрабатывает команды премиум-функций.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик премиум-команд.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleFeatures обрабатывает команду !функции: каталог премиум-функций
// с отметкой уже открытых.
func (h *Handler) HandleFeatures(ctx context.Context, chatID int64) {
	ent, err := h.service.Entitlements(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения премиум-статуса")
		h.sendMessage(chatID, "❌ Ошибка получения премиум-статуса")
		return
	}

	var sb strings.Builder
	sb.WriteString("⭐ Премиум-функции:\n\n")
	for _, f := range Features {
		mark := "🔒"
		if ent.Has(f.ID) {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s %s — %s (%s)\n  !открыть %s\n",
			mark, f.Icon, f.Name, f.Description,
			common.FormatCoinsAmount(f.Cost), f.ID))
	}
	h.sendMessage(chatID, sb.String())
}

// HandleUnlock обрабатывает команду !открыть <feature_id>.
// Повторное открытие уже купленной функции бесплатно.
func (h *Handler) HandleUnlock(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "❌ Формат: !открыть <feature_id>\nСписок: !функции")
		return
	}

	featureID := args[0]
	ok, err := h.service.Unlock(ctx, featureID)
	if err != nil {
		if errors.Is(err, common.ErrUnknownFeature) {
			h.sendMessage(chatID, fmt.Sprintf("❌ Неизвестная функция: %s", featureID))
			return
		}
		log.WithError(err).WithField("feature_id", featureID).Error("Ошибка открытия функции")
		h.sendMessage(chatID, "❌ Ошибка открытия функции")
		return
	}
	if !ok {
		feature := Features[featureID]
		h.sendMessage(chatID, fmt.Sprintf("❌ Недостаточно монет: нужно %s",
			common.FormatCoinsAmount(feature.Cost)))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🎉 Функция %s открыта!", featureID))
}

// sendMessage — утилита для отправки сообщений.
func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

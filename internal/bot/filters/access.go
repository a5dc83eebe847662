// Package filters ограничивает круг собеседников бота.
// Бот операторский: отвечает только в личных сообщениях и только
// пользователям из списка операторов.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// AccessFilter пропускает только операторов в личных чатах.
type AccessFilter struct {
	operatorIDs map[int64]bool
}

// NewAccessFilter создаёт фильтр по списку операторов.
func NewAccessFilter(operatorIDs []int64) *AccessFilter {
	ids := make(map[int64]bool, len(operatorIDs))
	for _, id := range operatorIDs {
		ids[id] = true
	}
	return &AccessFilter{operatorIDs: ids}
}

// CheckAccess решает, обрабатывать ли сообщение.
func (f *AccessFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "AccessFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "AccessFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (service/channel message?)")
		return false
	}

	if !message.Chat.IsPrivate() {
		log.WithFields(log.Fields{
			"component": "AccessFilter",
			"chat_id":   message.Chat.ID,
		}).Debug("deny: не личный чат")
		return false
	}

	if !f.operatorIDs[message.From.ID] {
		log.WithFields(log.Fields{
			"component": "AccessFilter",
			"user_id":   message.From.ID,
		}).Debug("deny: не оператор")
		return false
	}

	return true
}

// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go подключает обработчики и запускает polling.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/bot/filters"
	"habit-premium-bot/internal/bot/middleware"
	"habit-premium-bot/internal/config"
	"habit-premium-bot/internal/features/coins"
	"habit-premium-bot/internal/features/premium"
	"habit-premium-bot/internal/features/purchase"
	"habit-premium-bot/internal/features/support"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	accessFilter *filters.AccessFilter
	rateLimiter  *middleware.RateLimiter

	coinsHandler    *coins.Handler
	purchaseHandler *purchase.Handler
	premiumHandler  *premium.Handler
	supportHandler  *support.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	coinsHandler *coins.Handler,
	purchaseHandler *purchase.Handler,
	premiumHandler *premium.Handler,
	supportHandler *support.Handler,
	accessFilter *filters.AccessFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:             api,
		cfg:             cfg,
		accessFilter:    accessFilter,
		rateLimiter:     middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		coinsHandler:    coinsHandler,
		purchaseHandler: purchaseHandler,
		premiumHandler:  premiumHandler,
		supportHandler:  supportHandler,
		parser:          NewCommandParser(),
		inflight:        make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message

	// Логируем входящее
	middleware.LogMessage(message)

	// Доступ только операторам в личных чатах
	if !b.accessFilter.CheckAccess(message) {
		return
	}

	// Rate limiting
	if message.From != nil && !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// Парсим команду
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	b.routeCommand(ctx, chatID, userID, message.MessageID, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, messageID int, cmd string, args []string) {
	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(chatID, helpText)

	case "баланс":
		b.coinsHandler.HandleBalance(ctx, chatID)

	case "потратить":
		b.coinsHandler.HandleSpend(ctx, chatID, args)

	case "магазин":
		b.purchaseHandler.HandleShop(ctx, chatID)

	case "купить":
		b.purchaseHandler.HandleBuy(ctx, chatID, args)

	case "восстановить":
		b.purchaseHandler.HandleRestore(ctx, chatID)

	case "обход":
		b.purchaseHandler.HandleSweep(ctx, chatID)

	case "функции":
		b.premiumHandler.HandleFeatures(ctx, chatID)

	case "открыть":
		b.premiumHandler.HandleUnlock(ctx, chatID, args)

	case "саппорт":
		b.supportHandler.HandleLogin(ctx, chatID, userID, messageID, args)

	case "выход":
		b.supportHandler.HandleLogout(ctx, chatID, userID)

	case "диагностика":
		b.supportHandler.HandleDiagnostics(ctx, chatID, userID)
	}
}

const helpText = `Команды:
!баланс — текущий баланс монет
!потратить <сумма> — списать монеты
!магазин — паки монет в продаже
!купить <product_id> — купить пак монет
!восстановить — повторить незавершённые покупки
!обход — обход незавершённых покупок
!функции — премиум-функции
!открыть <feature_id> — открыть функцию за монеты
!саппорт <пароль> — режим поддержки
!диагностика — отчёт о состоянии (режим поддержки)`

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// CommandParser парсит русские команды с префиксами !, . и /
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	text = strings.TrimSpace(text)
	parts := strings.Fields(text)

	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}

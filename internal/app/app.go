// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, биллинговый шлюз, репозитории,
// сервисы, обработчики и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/billing"
	"habit-premium-bot/internal/bot"
	"habit-premium-bot/internal/bot/filters"
	"habit-premium-bot/internal/config"
	"habit-premium-bot/internal/db/postgres"
	"habit-premium-bot/internal/features/coins"
	"habit-premium-bot/internal/features/premium"
	"habit-premium-bot/internal/features/purchase"
	"habit-premium-bot/internal/features/support"
	"habit-premium-bot/internal/jobs"
	"habit-premium-bot/internal/txlog"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Engine    *purchase.Engine
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
	Ring      *txlog.Ring
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Журнал последних транзакций ===
	// Кольцо подключается хуком к logrus: всё, что пишут сервисы,
	// попадает и в отчёт !диагностика.
	ring := txlog.NewRing(txlog.DefaultCapacity)
	log.AddHook(ring)

	// === 3. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 4. Биллинговый шлюз ===
	// В проде сюда встаёт реальный адаптер платформы; песочница
	// ведёт себя как магазин, включая асинхронные события.
	platform := billing.NewSandbox(sandboxCatalog(), cfg.BillingSandboxDelay)
	gateway := billing.NewGateway(platform)

	// === 5. Репозитории ===
	coinsRepo := coins.NewRepository(pool)
	premiumRepo := premium.NewRepository(pool)
	journalRepo := purchase.NewJournalRepository(pool)
	supportRepo := support.NewRepository(pool)

	// === 6. Сервисы ===
	coinsService := coins.NewService(coinsRepo)
	premiumService := premium.NewService(premiumRepo, coinsService)
	engine := purchase.NewEngine(gateway, coinsService, journalRepo, cfg)
	supportService := support.NewService(supportRepo, cfg, ring, coinsService, premiumService)

	// === 7. Обработчики ===
	coinsHandler := coins.NewHandler(coinsService, botAPI)
	purchaseHandler := purchase.NewHandler(engine, botAPI)
	premiumHandler := premium.NewHandler(premiumService, botAPI)
	supportHandler := support.NewHandler(supportService, botAPI)

	// === 8. Фильтры ===
	accessFilter := filters.NewAccessFilter(cfg.OperatorIDs)

	// === 9. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		coinsHandler,
		purchaseHandler,
		premiumHandler,
		supportHandler,
		accessFilter,
	)

	// === 10. Планировщик задач ===
	scheduler := jobs.NewScheduler(engine, cfg.SweepInterval)

	return &App{
		Bot:       b,
		Engine:    engine,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
		Ring:      ring,
	}, nil
}

// sandboxCatalog строит каталог песочницы из конфигурации паков монет.
func sandboxCatalog() []billing.Product {
	var products []billing.Product
	for _, id := range purchase.ProductIDs() {
		pack := purchase.CoinsConfig[id]
		products = append(products, billing.Product{
			ProductID:      id,
			Price:          fmt.Sprintf("%.0f", pack.PriceUSD*100),
			Currency:       "USD",
			Title:          fmt.Sprintf("Пак «%d монет»", pack.Coins),
			Description:    fmt.Sprintf("Добавляет %d монет на баланс", pack.Coins),
			LocalizedPrice: pack.DisplayPrice,
		})
	}
	return products
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Wallet},
		{2, migration002Entitlements},
		{3, migration003Journal},
		{4, migration004Support},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Wallet = `
CREATE TABLE IF NOT EXISTS premium_wallet (
    id INTEGER PRIMARY KEY,
    amount BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0),
    last_updated TIMESTAMP NOT NULL DEFAULT NOW()
);
`

var migration002Entitlements = `
CREATE TABLE IF NOT EXISTS premium_entitlements (
    id INTEGER PRIMARY KEY,
    unlocked_features JSONB NOT NULL DEFAULT '[]'::jsonb,
    advanced_stats_active BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

var migration003Journal = `
CREATE TABLE IF NOT EXISTS processed_purchases (
    tx_key VARCHAR(512) PRIMARY KEY,
    product_id VARCHAR(255) NOT NULL,
    credited_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_processed_purchases_credited_at ON processed_purchases(credited_at);
`

var migration004Support = `
CREATE TABLE IF NOT EXISTS support_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_support_sessions_user_id ON support_sessions(user_id);
CREATE TABLE IF NOT EXISTS support_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
`

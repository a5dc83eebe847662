// Package support — service.go содержит аутентификацию операторов
// и сборку диагностического отчёта для поддержки.
package support

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"habit-premium-bot/internal/common"
	"habit-premium-bot/internal/config"
	"habit-premium-bot/internal/features/coins"
	"habit-premium-bot/internal/features/premium"
	"habit-premium-bot/internal/txlog"
)

// Service управляет панелью поддержки.
type Service struct {
	repo    SessionStore
	cfg     *config.Config
	ring    *txlog.Ring
	coins   *coins.Service
	premium *premium.Service
}

// NewService создаёт сервис панели поддержки.
func NewService(repo SessionStore, cfg *config.Config, ring *txlog.Ring,
	coinsService *coins.Service, premiumService *premium.Service) *Service {
	return &Service{
		repo:    repo,
		cfg:     cfg,
		ring:    ring,
		coins:   coinsService,
		premium: premiumService,
	}
}

// VerifyPassword проверяет пароль оператора (Argon2id).
// Защита от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) error {
	attempts, err := s.repo.GetRecentFailedAttempts(ctx, userID, 1*time.Hour)
	if err != nil {
		return err
	}
	if attempts >= 3 {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.cfg.SupportPasswordHash)

	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).Warn("Попытка входа не записалась")
	}

	if !match {
		return common.ErrWrongPassword
	}

	// Сессия на 24 часа
	session := &Session{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}
	return s.repo.CreateSession(ctx, session)
}

// HasActiveSession проверяет, авторизован ли пользователь.
func (s *Service) HasActiveSession(ctx context.Context, userID int64) bool {
	session, err := s.repo.GetActiveSession(ctx, userID)
	return err == nil && session != nil
}

// Logout деактивирует сессии пользователя.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.repo.DeactivateSession(ctx, userID)
}

// DebugReport собирает человекочитаемый отчёт для поддержки:
// журнал покупок + текущие снимки кошелька и разблокировок.
// Это не машинный интерфейс, формат под чтение глазами.
func (s *Service) DebugReport(ctx context.Context) string {
	var sb strings.Builder

	balance, err := s.coins.Balance(ctx)
	if err != nil {
		sb.WriteString(fmt.Sprintf("Кошелёк: ошибка чтения (%v)\n", err))
	} else {
		sb.WriteString(fmt.Sprintf("Кошелёк: %s (обновлён %s)\n",
			common.FormatBalance(balance.Amount),
			common.FormatDateTime(balance.LastUpdated)))
	}

	ents, err := s.premium.Entitlements(ctx)
	if err != nil {
		sb.WriteString(fmt.Sprintf("Разблокировки: ошибка чтения (%v)\n", err))
	} else {
		if len(ents.UnlockedFeatures) == 0 {
			sb.WriteString("Разблокировки: нет\n")
		} else {
			sb.WriteString(fmt.Sprintf("Разблокировки: %s\n", strings.Join(ents.UnlockedFeatures, ", ")))
		}
		sb.WriteString(fmt.Sprintf("Расширенная статистика активна: %t\n", ents.IsAdvancedStatsActive))
	}

	sb.WriteString("\n--- Журнал ---\n")
	sb.WriteString(s.ring.Dump())
	return sb.String()
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

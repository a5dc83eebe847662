package support

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/argon2"

	"habit-premium-bot/internal/common"
	"habit-premium-bot/internal/config"
	"habit-premium-bot/internal/features/coins"
	"habit-premium-bot/internal/features/premium"
	"habit-premium-bot/internal/txlog"
)

// fakeSessionStore — хранилище сессий в памяти для тестов.
type fakeSessionStore struct {
	sessions map[int64]*Session
	attempts []LoginAttempt
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[int64]*Session)}
}

func (f *fakeSessionStore) CreateSession(ctx context.Context, s *Session) error {
	f.sessions[s.UserID] = s
	return nil
}

func (f *fakeSessionStore) GetActiveSession(ctx context.Context, userID int64) (*Session, error) {
	s, ok := f.sessions[userID]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return s, nil
}

func (f *fakeSessionStore) DeactivateSession(ctx context.Context, userID int64) error {
	delete(f.sessions, userID)
	return nil
}

func (f *fakeSessionStore) LogAttempt(ctx context.Context, userID int64, success bool) error {
	f.attempts = append(f.attempts, LoginAttempt{UserID: userID, Success: success, AttemptTime: time.Now()})
	return nil
}

func (f *fakeSessionStore) GetRecentFailedAttempts(ctx context.Context, userID int64, period time.Duration) (int, error) {
	cutoff := time.Now().Add(-period)
	count := 0
	for _, a := range f.attempts {
		if a.UserID == userID && !a.Success && a.AttemptTime.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func encodePassword(password string) string {
	salt := []byte("0123456789abcdef")
	hash := argon2.IDKey([]byte(password), salt, 3, 65536, 2, 32)
	return fmt.Sprintf("$argon2id$v=19$m=65536,t=3,p=2$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func newTestService(store SessionStore, passwordHash string) *Service {
	cfg := &config.Config{SupportPasswordHash: passwordHash}
	coinsService := coins.NewService(coins.NewMemoryStore())
	premiumService := premium.NewService(premium.NewMemoryStore(), coinsService)
	return NewService(store, cfg, txlog.NewRing(10), coinsService, premiumService)
}

func TestVerifyPassword(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, encodePassword("секрет"))
	ctx := context.Background()

	if err := svc.VerifyPassword(ctx, 42, "секрет"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !svc.HasActiveSession(ctx, 42) {
		t.Fatal("после входа должна быть активная сессия")
	}
}

func TestVerifyPasswordWrong(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, encodePassword("секрет"))
	ctx := context.Background()

	err := svc.VerifyPassword(ctx, 42, "не тот пароль")
	if !errors.Is(err, common.ErrWrongPassword) {
		t.Fatalf("ожидался ErrWrongPassword, получено %v", err)
	}
	if svc.HasActiveSession(ctx, 42) {
		t.Fatal("сессии после неверного пароля быть не должно")
	}
}

func TestVerifyPasswordLockout(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, encodePassword("секрет"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.VerifyPassword(ctx, 42, "мимо"); !errors.Is(err, common.ErrWrongPassword) {
			t.Fatalf("попытка %d: %v", i+1, err)
		}
	}

	// После трёх неудач — блокировка, даже с верным паролем
	err := svc.VerifyPassword(ctx, 42, "секрет")
	if !errors.Is(err, common.ErrTooManyAttempts) {
		t.Fatalf("ожидался ErrTooManyAttempts, получено %v", err)
	}
}

func TestLogout(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, encodePassword("секрет"))
	ctx := context.Background()

	svc.VerifyPassword(ctx, 42, "секрет")
	if err := svc.Logout(ctx, 42); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if svc.HasActiveSession(ctx, 42) {
		t.Fatal("после выхода сессия должна быть деактивирована")
	}
}

func TestVerifyArgon2idMalformedHash(t *testing.T) {
	if verifyArgon2id("пароль", "это-не-хеш") {
		t.Fatal("некорректный хеш не должен проходить проверку")
	}
	if verifyArgon2id("пароль", "") {
		t.Fatal("пустой хеш не должен проходить проверку")
	}
}

func TestDebugReport(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, encodePassword("секрет"))
	ctx := context.Background()

	svc.coins.Credit(ctx, 7, "тест")
	svc.ring.Add(txlog.Entry{
		Time:    time.Now(),
		Level:   "info",
		Message: "Покупка начислена",
	})

	report := svc.DebugReport(ctx)
	if !strings.Contains(report, "Кошелёк: 7 монет") {
		t.Fatalf("в отчёте нет баланса: %q", report)
	}
	if !strings.Contains(report, "Покупка начислена") {
		t.Fatalf("в отчёте нет журнала: %q", report)
	}
}

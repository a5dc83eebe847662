// Package purchase — retry.go, ограниченные повторы для операций биллинга.
// Повторяются только две операции: запрос покупки и потребление.
// Повтор допустим только для временных ошибок (сеть, таймаут);
// «уже куплено» и ошибки валидации не повторяются никогда.
package purchase

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/billing"
)

// withRetry выполняет fn, повторяя её при временных ошибках.
// retries — число повторов сверх первой попытки; пауза перед n-м
// повтором растёт линейно: n * base.
func withRetry(ctx context.Context, retries int, base time.Duration, op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if billing.Classify(err) != billing.KindTransient {
			return err
		}
		if attempt >= retries {
			log.WithError(err).WithFields(log.Fields{
				"op":       op,
				"attempts": attempt + 1,
			}).Error("Повторы исчерпаны")
			return err
		}

		delay := time.Duration(attempt+1) * base
		log.WithError(err).WithFields(log.Fields{
			"op":    op,
			"retry": attempt + 1,
			"delay": delay.String(),
		}).Warn("Временная ошибка, повторяем")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

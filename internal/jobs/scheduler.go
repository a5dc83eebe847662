// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: периодический добор
// незавершённых покупок и ночная чистка журнала транзакций.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"habit-premium-bot/internal/features/purchase"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron          *cron.Cron
	engine        *purchase.Engine
	sweepInterval time.Duration
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(engine *purchase.Engine, sweepInterval time.Duration) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:          c,
		engine:        engine,
		sweepInterval: sweepInterval,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Периодический добор незавершённых покупок: подбирает транзакции,
	// потерянные при падении между покупкой и начислением.
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.sweepInterval), func() {
		if !s.engine.State().IsInitialized {
			log.Debug("[CRON] Движок покупок не инициализирован, пропуск добора")
			return
		}
		credited, err := s.engine.SweepUnfinished(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка добора незавершённых покупок")
			return
		}
		if credited > 0 {
			log.WithField("credited", credited).Info("[CRON] Добор зачислил монеты")
		}
	})

	// Ночная чистка журнала обработанных транзакций в 03:00 по Москве
	s.cron.AddFunc("0 3 * * *", func() {
		log.Info("[CRON] Чистка журнала транзакций")
		removed, err := s.engine.PruneJournal(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка чистки журнала")
			return
		}
		log.WithField("removed", removed).Info("[CRON] Журнал транзакций очищен")
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

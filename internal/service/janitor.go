package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/engine"
	"telegram_arena/internal/logger"
	"telegram_arena/internal/repository"
)

// журнал аудита держим три месяца
const auditRetention = 90 * 24 * time.Hour

// Janitor закрывает брошенные сессии. Два прохода: живые сессии движка
// без активности дольше порога завершаются ничьей, затем строки в базе
// без расчета (остатки прошлых запусков) добиваются напрямую.
type Janitor struct {
	manager     *engine.Manager
	settlements *SettlementService
	sessionRepo *repository.SessionRepository
	auditRepo   *repository.AuditRepository

	abandonAfter time.Duration
	interval     time.Duration

	mu        sync.Mutex
	stop      chan struct{}
	running   bool
	lastPurge time.Time
}

// NewJanitor создает уборщик сессий
func NewJanitor(
	db *pgxpool.Pool,
	manager *engine.Manager,
	settlements *SettlementService,
	abandonAfter time.Duration,
	interval time.Duration,
) *Janitor {
	return &Janitor{
		manager:      manager,
		settlements:  settlements,
		sessionRepo:  repository.NewSessionRepository(db),
		auditRepo:    repository.NewAuditRepository(db),
		abandonAfter: abandonAfter,
		interval:     interval,
		stop:         make(chan struct{}),
	}
}

// Start запускает уборщик в фоновом режиме
func (j *Janitor) Start() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	logger.Info("запуск уборщика сессий", "abandon_after", j.abandonAfter, "interval", j.interval)

	// первоначальный проход подбирает остатки прошлого запуска
	j.sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stop:
			logger.Info("остановка уборщика сессий")
			return
		}
	}
}

// Stop останавливает уборщик
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		close(j.stop)
		j.running = false
	}
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	live := j.sweepLive()
	j.sweepRows(ctx, live)
	j.purgeAudit(ctx)
}

// проход по сессиям в памяти движка; возвращает их id, чтобы проход по
// базе не трогал то, что движок еще держит
func (j *Janitor) sweepLive() map[uuid.UUID]struct{} {
	now := time.Now()
	live := make(map[uuid.UUID]struct{})

	for _, info := range j.manager.Sessions() {
		live[info.ID] = struct{}{}

		switch info.State {
		case domain.SessionPending, domain.SessionInProgress:
			if now.Sub(info.CreatedAt) < j.abandonAfter {
				continue
			}
			if err := j.manager.Abandon(info.ID); err != nil {
				// сессия успела завершиться между снимком и вызовом
				logger.Debug("сессия ушла из-под уборщика", "session_id", info.ID, "error", err)
				continue
			}
			logger.Info("брошенная сессия закрыта ничьей", "session_id", info.ID, "game_type", info.GameType)
			j.settleLive(info.ID)

		case domain.SessionTerminal:
			// терминальную без расчета дольше одного интервала добиваем:
			// обычный путь рассчитывает ее сразу после завершения
			if info.FinishedAt == nil || now.Sub(*info.FinishedAt) < j.interval {
				continue
			}
			j.settleLive(info.ID)

		case domain.SessionSettled:
			at := info.CreatedAt
			if info.FinishedAt != nil {
				at = *info.FinishedAt
			}
			if now.Sub(at) < j.abandonAfter {
				continue
			}
			if err := j.manager.Release(info.ID); err == nil {
				delete(live, info.ID)
			}
		}
	}
	return live
}

func (j *Janitor) settleLive(id uuid.UUID) {
	if _, err := j.manager.Settle(id); err != nil {
		var dup *domain.AlreadySettledError
		if errors.As(err, &dup) {
			return
		}
		logger.Error("уборщик не смог рассчитать сессию", "session_id", id, "error", err)
	}
}

// проход по строкам в базе без расчета
func (j *Janitor) sweepRows(ctx context.Context, live map[uuid.UUID]struct{}) {
	rows, err := j.sessionRepo.ListUnsettled(ctx, time.Now().Add(-j.abandonAfter))
	if err != nil {
		logger.Error("уборщик не смог прочитать зависшие сессии", "error", err)
		return
	}

	for i := range rows {
		sess := &rows[i]
		if _, held := live[sess.ID]; held {
			continue
		}
		if err := j.settlements.SettleStale(ctx, sess); err != nil {
			logger.Error("уборщик не смог добить строку сессии", "session_id", sess.ID, "error", err)
		}
	}
}

// чистка журнала аудита не чаще раза в сутки
func (j *Janitor) purgeAudit(ctx context.Context) {
	j.mu.Lock()
	due := time.Since(j.lastPurge) >= 24*time.Hour
	if due {
		j.lastPurge = time.Now()
	}
	j.mu.Unlock()
	if !due {
		return
	}

	n, err := j.auditRepo.Purge(ctx, time.Now().Add(-auditRetention))
	if err != nil {
		logger.Error("чистка журнала аудита не прошла", "error", err)
		return
	}
	if n > 0 {
		logger.Info("журнал аудита почищен", "removed", n)
	}
}

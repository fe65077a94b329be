package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/logger"
	"telegram_arena/internal/repository"
)

// обрабатывает логирование аудита
type AuditService struct {
	repo *repository.AuditRepository
}

// создает новый сервис аудита
func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{
		repo: repository.NewAuditRepository(db),
	}
}

// создает новую запись в журнале аудита
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	log := &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.Error("не удалось создать запись аудита", "error", err, "action", action, "user_id", userID)
	}
}

// создает запись аудита с информацией о запросе (ip, user-agent)
func (s *AuditService) LogWithRequest(ctx context.Context, userID int64, action, category, ip, userAgent string, details map[string]interface{}) {
	log := &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.Error("не удалось создать запись аудита", "error", err, "action", action, "user_id", userID)
	}
}

// логирует вход пользователя
func (s *AuditService) LogLogin(ctx context.Context, userID int64, ip, userAgent string) {
	s.LogWithRequest(ctx, userID, domain.AuditActionLogin, domain.AuditCategoryAuth, ip, userAgent, nil)
}

// логирует переход жизненного цикла сессии
func (s *AuditService) LogSession(ctx context.Context, userID int64, action string, sessionID uuid.UUID, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["session_id"] = sessionID.String()

	s.Log(ctx, userID, action, domain.AuditCategorySession, details)
}

// логирует резерв или возврат ставки
func (s *AuditService) LogStake(ctx context.Context, userID int64, action string, sessionID uuid.UUID, stakeNano int64) {
	s.Log(ctx, userID, action, domain.AuditCategoryBalance, map[string]interface{}{
		"session_id": sessionID.String(),
		"stake_nano": stakeNano,
	})
}

// логирует отправку выплаты в сеть
func (s *AuditService) LogPayoutSent(ctx context.Context, userID, payoutID int64, amountNano int64, txHash string) {
	s.Log(ctx, userID, domain.AuditActionPayoutSent, domain.AuditCategoryPayout, map[string]interface{}{
		"payout_id":   payoutID,
		"amount_nano": amountNano,
		"tx_hash":     txHash,
	})
}

// логирует неудавшуюся выплату
func (s *AuditService) LogPayoutFailed(ctx context.Context, userID, payoutID int64, amountNano int64, reason string) {
	s.Log(ctx, userID, domain.AuditActionPayoutFailed, domain.AuditCategoryPayout, map[string]interface{}{
		"payout_id":   payoutID,
		"amount_nano": amountNano,
		"reason":      reason,
	})
}

// логирует действие администратора
func (s *AuditService) LogAdminAction(ctx context.Context, adminID int64, action string, targetUserID int64, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["admin_id"] = adminID
	details["target_user_id"] = targetUserID

	s.Log(ctx, targetUserID, action, domain.AuditCategoryAdmin, details)
}

// возвращает записи аудита для пользователя
func (s *AuditService) GetUserAuditLogs(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByUserID(ctx, userID, limit)
}

// возвращает последние записи аудита
func (s *AuditService) GetRecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetRecent(ctx, limit)
}

// возвращает записи аудита по категории
func (s *AuditService) GetLogsByCategory(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetByCategory(ctx, category, limit)
}

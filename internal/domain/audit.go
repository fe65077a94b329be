package domain

import "time"

// Логирование важных действий: ставки, расчеты, выплаты
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Категории совершенных действий
const (
	AuditCategoryAuth       = "auth"
	AuditCategorySession    = "session"
	AuditCategorySettlement = "settlement"
	AuditCategoryBalance    = "balance"
	AuditCategoryPayout     = "payout"
	AuditCategoryAdmin      = "admin"
)

const (
	// Авторизация
	AuditActionLogin = "login"

	// Сессии
	AuditActionSessionCreate  = "session_create"
	AuditActionSessionStart   = "session_start"
	AuditActionSessionFinish  = "session_finish"
	AuditActionSessionTimeout = "session_timeout"
	AuditActionSessionResign  = "session_resign"

	// Расчеты и ставки
	AuditActionStakeHold   = "stake_hold"
	AuditActionStakeRefund = "stake_refund"
	AuditActionSettle      = "settle"

	// Выплаты
	AuditActionPayoutCredited = "payout_credited"
	AuditActionPayoutSent     = "payout_sent"
	AuditActionPayoutFailed   = "payout_failed"

	// Действия админов
	AuditActionAdminBanUser   = "admin_ban_user"
	AuditActionAdminUnbanUser = "admin_unban_user"
)

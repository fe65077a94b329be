package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/ton"
)

// предоставляет административную статистику и операции
type AdminService struct {
	db     *pgxpool.Pool
	wallet *ton.Wallet
}

// создает новый административный сервис
func NewAdminService(db *pgxpool.Pool) *AdminService {
	return &AdminService{db: db}
}

// устанавливает TON кошелек платформы для проверки баланса
func (s *AdminService) SetWallet(wallet *ton.Wallet) {
	s.wallet = wallet
}

// представляет статистику платформы
type Stats struct {
	TotalUsers       int64 `json:"total_users"`
	ActiveUsersToday int64 `json:"active_users_today"`
	ActiveUsersWeek  int64 `json:"active_users_week"`

	TotalSessions   int64 `json:"total_sessions"`
	SessionsToday   int64 `json:"sessions_today"`
	SessionsLive    int64 `json:"sessions_live"`    // сейчас идут
	SessionsPending int64 `json:"sessions_pending"` // созданы, но не начаты

	TotalBalanceNano int64 `json:"total_balance_nano"` // сумма внутренних балансов
	TotalStakedNano  int64 `json:"total_staked_nano"`  // банк всех сессий за все время
	StakedTodayNano  int64 `json:"staked_today_nano"`
	TotalRakeNano    int64 `json:"total_rake_nano"` // удержанная комиссия
	RakeTodayNano    int64 `json:"rake_today_nano"`

	PendingPayouts     int   `json:"pending_payouts"`      // выплаты в очереди пересылки
	FailedPayouts      int   `json:"failed_payouts"`       // неудавшиеся пересылки
	TotalForwardedNano int64 `json:"total_forwarded_nano"` // переслано в сеть за все время
}

// возвращает статистику платформы
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	today := time.Now().Truncate(24 * time.Hour)
	weekAgo := today.Add(-7 * 24 * time.Hour)

	// пользователи
	_ = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers)
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE last_active_at >= $1
	`, today).Scan(&stats.ActiveUsersToday)
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM users WHERE last_active_at >= $1
	`, weekAgo).Scan(&stats.ActiveUsersWeek)

	// сессии
	_ = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&stats.TotalSessions)
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions WHERE created_at >= $1
	`, today).Scan(&stats.SessionsToday)
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions WHERE status = 'in_progress'
	`).Scan(&stats.SessionsLive)
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions WHERE status = 'pending'
	`).Scan(&stats.SessionsPending)

	// деньги
	_ = s.db.QueryRow(ctx, `SELECT COALESCE(SUM(balance_nano), 0) FROM users`).Scan(&stats.TotalBalanceNano)
	_ = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(stake_nano), 0) FROM settlements
	`).Scan(&stats.TotalStakedNano)
	_ = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(stake_nano), 0) FROM settlements WHERE created_at >= $1
	`, today).Scan(&stats.StakedTodayNano)
	_ = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(rake_nano), 0) FROM settlements
	`).Scan(&stats.TotalRakeNano)
	_ = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(rake_nano), 0) FROM settlements WHERE created_at >= $1
	`, today).Scan(&stats.RakeTodayNano)

	// выплаты
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM payouts WHERE status = 'pending'
	`).Scan(&stats.PendingPayouts)
	_ = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM payouts WHERE status = 'failed'
	`).Scan(&stats.FailedPayouts)
	_ = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_nano), 0) FROM payouts WHERE status = 'sent'
	`).Scan(&stats.TotalForwardedNano)

	return stats, nil
}

// баланс кошелька платформы в нанотонах; 0 если кошелек не настроен
func (s *AdminService) GetPlatformBalance(ctx context.Context) (uint64, error) {
	if s.wallet == nil {
		return 0, errors.New("кошелек платформы не настроен")
	}
	return s.wallet.GetBalance(ctx)
}

// представляет информацию о пользователе для администратора
type UserInfo struct {
	ID          int64     `json:"id"`
	TgID        int64     `json:"tg_id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	BalanceNano int64     `json:"balance_nano"`
	GamesPlayed int64     `json:"games_played"`
	Wins        int64     `json:"wins"`
	Losses      int64     `json:"losses"`
	TotalWon    int64     `json:"total_won_nano"`
	TotalStaked int64     `json:"total_staked_nano"`
	IsBanned    bool      `json:"is_banned"`
	CreatedAt   time.Time `json:"created_at"`
}

const adminUserColumns = `id, tg_id, COALESCE(username, ''), COALESCE(first_name, ''), balance_nano,
	games_played, wins, losses, total_won_nano, total_staked_nano, is_banned, created_at`

// возвращает информацию о пользователе по tg_id или @username
func (s *AdminService) GetUser(ctx context.Context, identifier string) (*UserInfo, error) {
	identifier = strings.TrimPrefix(identifier, "@")

	var row pgx.Row
	if tgID, parseErr := strconv.ParseInt(identifier, 10, 64); parseErr == nil {
		row = s.db.QueryRow(ctx, `SELECT `+adminUserColumns+` FROM users WHERE tg_id = $1`, tgID)
	} else {
		row = s.db.QueryRow(ctx, `SELECT `+adminUserColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, identifier)
	}

	var u UserInfo
	err := row.Scan(&u.ID, &u.TgID, &u.Username, &u.FirstName, &u.BalanceNano,
		&u.GamesPlayed, &u.Wins, &u.Losses, &u.TotalWon, &u.TotalStaked, &u.IsBanned, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// банит пользователя: вход и новые сессии для него закрыты
func (s *AdminService) BanUser(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET is_banned = TRUE WHERE id = $1`, userID)
	return err
}

// разбанивает пользователя
func (s *AdminService) UnbanUser(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET is_banned = FALSE WHERE id = $1`, userID)
	return err
}

// возвращает лучших пользователей по выигранному
func (s *AdminService) GetTopUsers(ctx context.Context, limit int) ([]UserInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+adminUserColumns+`
		FROM users
		WHERE is_banned = FALSE
		ORDER BY total_won_nano DESC, wins DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserInfo
	for rows.Next() {
		var u UserInfo
		if err := rows.Scan(&u.ID, &u.TgID, &u.Username, &u.FirstName, &u.BalanceNano,
			&u.GamesPlayed, &u.Wins, &u.Losses, &u.TotalWon, &u.TotalStaked, &u.IsBanned, &u.CreatedAt); err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// возвращает последние сессии с именами участников
func (s *AdminService) GetRecentSessions(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.game_type, s.status, COALESCE(s.result, ''),
		       s.stake_amount_nano, s.move_count, s.created_at,
		       s.player1_id, COALESCE(u1.username, ''),
		       s.player2_id, COALESCE(u2.username, '')
		FROM sessions s
		LEFT JOIN users u1 ON u1.id = s.player1_id
		LEFT JOIN users u2 ON u2.id = s.player2_id
		ORDER BY s.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []map[string]interface{}
	for rows.Next() {
		var id, gameType, status, result, p1Name, p2Name string
		var stakeNano int64
		var p1, p2 int64
		var moveCount int
		var createdAt time.Time

		if err := rows.Scan(&id, &gameType, &status, &result, &stakeNano, &moveCount, &createdAt,
			&p1, &p1Name, &p2, &p2Name); err != nil {
			continue
		}

		if p2 == domain.BotID {
			p2Name = "bot"
		}

		sessions = append(sessions, map[string]interface{}{
			"id":         id,
			"game_type":  gameType,
			"status":     status,
			"result":     result,
			"stake_nano": stakeNano,
			"move_count": moveCount,
			"player1":    p1Name,
			"player2":    p2Name,
			"created_at": createdAt,
		})
	}
	return sessions, nil
}

// представляет выплату в очереди для администратора
type PendingPayoutInfo struct {
	ID            int64     `json:"id"`
	SessionID     string    `json:"session_id"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"wallet_address"`
	AmountNano    int64     `json:"amount_nano"`
	Status        string    `json:"status"`
	FailReason    string    `json:"fail_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// возвращает неотправленные выплаты; processing после рестарта значит,
// что воркер упал между списанием и отправкой, такие строки разбираются вручную
func (s *AdminService) GetProblemPayouts(ctx context.Context, limit int) ([]PendingPayoutInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.session_id, p.user_id, COALESCE(u.username, ''),
		       p.wallet_address, p.amount_nano, p.status, COALESCE(p.fail_reason, ''), p.created_at
		FROM payouts p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.status IN ('pending', 'processing', 'failed')
		ORDER BY p.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []PendingPayoutInfo
	for rows.Next() {
		var p PendingPayoutInfo
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.Username,
			&p.WalletAddress, &p.AmountNano, &p.Status, &p.FailReason, &p.CreatedAt); err != nil {
			continue
		}
		payouts = append(payouts, p)
	}
	return payouts, nil
}

// возвращает неудавшуюся выплату в очередь на повтор
func (s *AdminService) RetryPayout(ctx context.Context, payoutID int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE payouts SET status = 'pending', fail_reason = NULL WHERE id = $1 AND status = 'failed'
	`, payoutID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("выплата не найдена или не в статусе failed")
	}
	return nil
}

// представляет пополнение для сводки администратору
type DepositInfo struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	AmountNano int64     `json:"amount_nano"`
	TxHash     string    `json:"tx_hash"`
	CreatedAt  time.Time `json:"created_at"`
}

// возвращает последние пополнения
func (s *AdminService) GetRecentDeposits(ctx context.Context, limit int) ([]DepositInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.id, d.user_id, COALESCE(u.username, ''), d.amount_nano, d.tx_hash, d.created_at
		FROM deposits d
		LEFT JOIN users u ON u.id = d.user_id
		ORDER BY d.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []DepositInfo
	for rows.Next() {
		var d DepositInfo
		if err := rows.Scan(&d.ID, &d.UserID, &d.Username, &d.AmountNano, &d.TxHash, &d.CreatedAt); err != nil {
			continue
		}
		deposits = append(deposits, d)
	}
	return deposits, nil
}

// возвращает tg_id всех пользователей для рассылки
func (s *AdminService) GetAllUserTgIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT tg_id FROM users WHERE is_banned = FALSE AND tg_id > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// находит внутренний id пользователя по tg_id или @username
func (s *AdminService) ResolveUserIdentifier(ctx context.Context, identifier string) (int64, error) {
	u, err := s.GetUser(ctx, identifier)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
)

const payoutColumns = `id, session_id, user_id, wallet_address, amount_nano, status,
	tx_hash, tx_lt, fail_reason, created_at, sent_at`

// исходящие выплаты выигрышей на кошельки победителей
type PayoutRepository struct {
	db *pgxpool.Pool
}

func NewPayoutRepository(db *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// регистрирует выплату в статусе pending
func (r *PayoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO payouts (session_id, user_id, wallet_address, amount_nano, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.SessionID, p.UserID, p.WalletAddress, p.AmountNano, domain.PayoutStatusPending).Scan(&p.ID, &p.CreatedAt)
}

// получает выплату по id
func (r *PayoutRepository) GetByID(ctx context.Context, id int64) (*domain.Payout, error) {
	row := r.db.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	return scanPayout(row)
}

// все выплаты по сессии
func (r *PayoutRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) ([]domain.Payout, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+payoutColumns+` FROM payouts WHERE session_id = $1 ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayouts(rows)
}

// выплаты пользователя, новые первыми
func (r *PayoutRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]domain.Payout, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayouts(rows)
}

// очередь выплат на отправку, старые первыми
func (r *PayoutRepository) GetPending(ctx context.Context, limit int) ([]domain.Payout, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayouts(rows)
}

// захватывает выплату в обработку; false если строка уже не pending
func (r *PayoutRepository) Claim(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payouts SET status = 'processing' WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// помечает выплату отправленной с хэшем транзакции в сети
func (r *PayoutRepository) MarkSent(ctx context.Context, id int64, txHash string, txLt int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payouts SET status = 'sent', tx_hash = $2, tx_lt = $3, sent_at = $4 WHERE id = $1
	`, id, txHash, txLt, time.Now())
	return err
}

// помечает выплату неудачной с причиной
func (r *PayoutRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payouts SET status = 'failed', fail_reason = $2 WHERE id = $1
	`, id, reason)
	return err
}

// суммарный объем отправленных выплат - для админ статистики
func (r *PayoutRepository) TotalSent(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_nano), 0) FROM payouts WHERE status = 'sent'
	`).Scan(&total)
	return total, err
}

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	var txHash, failReason *string
	var txLt *int64

	if err := row.Scan(
		&p.ID, &p.SessionID, &p.UserID, &p.WalletAddress, &p.AmountNano, &p.Status,
		&txHash, &txLt, &failReason, &p.CreatedAt, &p.SentAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if txHash != nil {
		p.TxHash = *txHash
	}
	if txLt != nil {
		p.TxLt = *txLt
	}
	if failReason != nil {
		p.FailReason = *failReason
	}
	return &p, nil
}

func scanPayouts(rows pgx.Rows) ([]domain.Payout, error) {
	var payouts []domain.Payout
	for rows.Next() {
		var p domain.Payout
		var txHash, failReason *string
		var txLt *int64

		if err := rows.Scan(
			&p.ID, &p.SessionID, &p.UserID, &p.WalletAddress, &p.AmountNano, &p.Status,
			&txHash, &txLt, &failReason, &p.CreatedAt, &p.SentAt,
		); err != nil {
			return nil, err
		}

		if txHash != nil {
			p.TxHash = *txHash
		}
		if txLt != nil {
			p.TxLt = *txLt
		}
		if failReason != nil {
			p.FailReason = *failReason
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

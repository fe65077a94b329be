package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
)

const depositColumns = `id, user_id, wallet_address, amount_nano, tx_hash, tx_lt, memo, created_at`

// зачисленные пополнения с внешних кошельков
type DepositRepository struct {
	db *pgxpool.Pool
}

func NewDepositRepository(db *pgxpool.Pool) *DepositRepository {
	return &DepositRepository{db: db}
}

// записывает пополнение; при повторном tx_hash возвращает false,
// не меняя базу
func (r *DepositRepository) Create(ctx context.Context, d *domain.Deposit) (bool, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO deposits (user_id, wallet_address, amount_nano, tx_hash, tx_lt, memo)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING id, created_at
	`, d.UserID, d.WalletAddress, d.AmountNano, d.TxHash, d.TxLt, d.Memo).Scan(&d.ID, &d.CreatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// то же, но в рамках внешней транзакции: вставка служит замком,
// зачисляет баланс только тот, кто вставил строку
func (r *DepositRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, d *domain.Deposit) (bool, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO deposits (user_id, wallet_address, amount_nano, tx_hash, tx_lt, memo)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tx_hash) DO NOTHING
		RETURNING id, created_at
	`, d.UserID, d.WalletAddress, d.AmountNano, d.TxHash, d.TxLt, d.Memo).Scan(&d.ID, &d.CreatedAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// проверяет, обрабатывалась ли уже транзакция
func (r *DepositRepository) TxHashExists(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM deposits WHERE tx_hash = $1)
	`, txHash).Scan(&exists)
	return exists, err
}

// возвращает пополнения пользователя, новые первыми
func (r *DepositRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]domain.Deposit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+depositColumns+` FROM deposits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.WalletAddress, &d.AmountNano, &d.TxHash, &d.TxLt, &d.Memo, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// суммарный приток за все время
func (r *DepositRepository) TotalNano(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_nano), 0) FROM deposits
	`).Scan(&total)
	return total, err
}

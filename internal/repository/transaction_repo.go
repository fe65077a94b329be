package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
)

// журнал движений по внутренним балансам
type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// записывает движение по балансу
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	metaJSON, err := json.Marshal(t.Meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, meta)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.UserID, t.Type, t.Amount, metaJSON).Scan(&t.ID, &t.CreatedAt)
}

// записывает движение по балансу внутри открытой транзакции базы
func (r *TransactionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	metaJSON, err := json.Marshal(t.Meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	return tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, type, amount, meta)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.UserID, t.Type, t.Amount, metaJSON).Scan(&t.ID, &t.CreatedAt)
}

// возвращает последние движения по балансу пользователя
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, amount, meta, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var metaJSON []byte
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &metaJSON, &t.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &t.Meta); err != nil {
				t.Meta = make(map[string]interface{})
			}
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// суммарный оборот по типу движения - для админ статистики
func (r *TransactionRepository) SumByType(ctx context.Context, txType string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = $1
	`, txType).Scan(&total)
	return total, err
}

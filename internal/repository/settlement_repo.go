package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
)

// финансовые записи расчетов; одна строка на сессию, навсегда
type SettlementRepository struct {
	db *pgxpool.Pool
}

func NewSettlementRepository(db *pgxpool.Pool) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// записывает расчет внутри транзакции; повторная вставка по той же сессии
// тихо пропускается. Возвращает true, если строку записал именно этот вызов:
// по нему решается, двигать ли деньги.
func (r *SettlementRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, st *domain.Settlement) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO settlements (session_id, winner_id, stake_nano, rake_nano, payout_nano, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING
	`, st.SessionID, st.WinnerID, st.StakeNano, st.RakeNano, st.PayoutNano, st.Reason, st.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// получает расчет по id сессии
func (r *SettlementRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*domain.Settlement, error) {
	row := r.db.QueryRow(ctx, `
		SELECT session_id, winner_id, stake_nano, rake_nano, payout_nano, reason, created_at
		FROM settlements
		WHERE session_id = $1
	`, sessionID)

	var st domain.Settlement
	if err := row.Scan(
		&st.SessionID, &st.WinnerID, &st.StakeNano, &st.RakeNano, &st.PayoutNano, &st.Reason, &st.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// проверяет, рассчитана ли сессия
func (r *SettlementRepository) Exists(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM settlements WHERE session_id = $1)
	`, sessionID).Scan(&exists)
	return exists, err
}

// суммарная комиссия площадки - для админ статистики
func (r *SettlementRepository) TotalRake(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(rake_nano), 0) FROM settlements`).Scan(&total)
	return total, err
}

// последние расчеты, новые первыми
func (r *SettlementRepository) Recent(ctx context.Context, limit int) ([]domain.Settlement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT session_id, winner_id, stake_nano, rake_nano, payout_nano, reason, created_at
		FROM settlements
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Settlement
	for rows.Next() {
		var st domain.Settlement
		if err := rows.Scan(
			&st.SessionID, &st.WinnerID, &st.StakeNano, &st.RakeNano, &st.PayoutNano, &st.Reason, &st.CreatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, st)
	}
	return list, rows.Err()
}

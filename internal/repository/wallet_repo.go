package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
)

const walletColumns = `id, user_id, address, raw_address, linked_at, is_verified, last_proof_timestamp`

// привязанные TON кошельки - адреса назначения для выплат выигрышей
type WalletRepository struct {
	db *pgxpool.Pool
}

func NewWalletRepository(db *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{db: db}
}

// получает кошелек по id пользователя
func (r *WalletRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// получает кошелек по адресу в сети ton
func (r *WalletRepository) GetByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+walletColumns+` FROM wallets WHERE address = $1 OR raw_address = $1
	`, address)
	return scanWallet(row)
}

// привязывает кошелек к пользователю, повторная привязка заменяет адрес
func (r *WalletRepository) Upsert(ctx context.Context, w *domain.Wallet) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO wallets (user_id, address, raw_address, is_verified, last_proof_timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			address = EXCLUDED.address,
			raw_address = EXCLUDED.raw_address,
			is_verified = EXCLUDED.is_verified,
			last_proof_timestamp = EXCLUDED.last_proof_timestamp,
			linked_at = NOW()
		RETURNING id, linked_at
	`, w.UserID, w.Address, w.RawAddress, w.IsVerified, w.LastProofTimestamp).Scan(&w.ID, &w.LinkedAt)
}

// удаляет привязку кошелька
func (r *WalletRepository) Delete(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wallets WHERE user_id = $1`, userID)
	return err
}

// помечает кошелек как верифицированный
func (r *WalletRepository) SetVerified(ctx context.Context, userID int64, verified bool) error {
	_, err := r.db.Exec(ctx, `
		UPDATE wallets SET is_verified = $2 WHERE user_id = $1
	`, userID, verified)
	return err
}

// проверяет, есть ли у пользователя привязанный кошелек
func (r *WalletRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)
	`, userID).Scan(&exists)
	return exists, err
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	var rawAddr *string
	var lastProofTs *int64

	if err := row.Scan(
		&w.ID, &w.UserID, &w.Address, &rawAddr, &w.LinkedAt, &w.IsVerified, &lastProofTs,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if rawAddr != nil {
		w.RawAddress = *rawAddr
	}
	if lastProofTs != nil {
		w.LastProofTimestamp = *lastProofTs
	}
	return &w, nil
}

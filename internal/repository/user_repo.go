package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
)

const userColumns = `id, tg_id, username, first_name, balance_nano, games_played, wins, losses,
	total_won_nano, total_staked_nano, created_at, last_active_at, is_banned`

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// получает пользователя по внутреннему id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// получает пользователя по telegram id
func (r *UserRepository) GetByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tg_id = $1`, tgID)
	return scanUser(row)
}

// создает пользователя при первом входе либо освежает данные профиля
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, tgID int64, username, firstName string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (tg_id, username, first_name, last_active_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tg_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_active_at = NOW()
		RETURNING `+userColumns+`
	`, tgID, username, firstName)
	return scanUser(row)
}

// отмечает активность пользователя
func (r *UserRepository) Touch(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_active_at = NOW() WHERE id = $1`, id)
	return err
}

// блокирует либо разблокирует пользователя
func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET is_banned = $2 WHERE id = $1`, id, banned)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// лучшие игроки по сумме выигрышей
func (r *UserRepository) Top(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_banned = FALSE
		ORDER BY total_won_nano DESC, wins DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUserFrom(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// общее число пользователей и суммарный внутренний баланс - для админ статистики
func (r *UserRepository) Totals(ctx context.Context) (count int64, balanceNano int64, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(balance_nano), 0) FROM users
	`).Scan(&count, &balanceNano)
	return count, balanceNano, err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u, err := scanUserFrom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func scanUserFrom(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID, &u.TgID, &u.Username, &u.FirstName, &u.BalanceNano,
		&u.GamesPlayed, &u.Wins, &u.Losses,
		&u.TotalWonNano, &u.TotalStakedNano,
		&u.CreatedAt, &u.LastActiveAt, &u.IsBanned,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

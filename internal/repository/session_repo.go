package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
)

const sessionColumns = `id, game_type, player1_id, player2_id, stake_amount_nano, rake_bps, currency,
	status, result, winner_id, reason, detail, move_count, game_state_json,
	created_at, started_at, finished_at`

// хранение сессий: движок присылает снимки на каждом переходе, строка
// просто догоняет состояние в памяти
type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// записывает снимок сессии; повторный снимок той же сессии обновляет строку
func (r *SessionRepository) Upsert(ctx context.Context, s *domain.Session) error {
	var result, reason, detail *string
	var winnerID *int64
	if s.Outcome != nil {
		res := s.Outcome.ResultKey()
		result = &res
		rs := string(s.Outcome.Reason)
		reason = &rs
		if s.Outcome.Detail != "" {
			d := s.Outcome.Detail
			detail = &d
		}
		if s.Outcome.Winner != nil {
			w := s.PlayerOn(*s.Outcome.Winner)
			winnerID = &w
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, game_type, player1_id, player2_id, stake_amount_nano, rake_bps,
		                      currency, status, result, winner_id, reason, detail, move_count,
		                      game_state_json, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    result = EXCLUDED.result,
		    winner_id = EXCLUDED.winner_id,
		    reason = EXCLUDED.reason,
		    detail = EXCLUDED.detail,
		    move_count = EXCLUDED.move_count,
		    game_state_json = EXCLUDED.game_state_json,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at
	`, s.ID, s.GameType, s.PlayerA, s.PlayerB, s.StakeNano, s.RakeBps,
		s.Currency, s.State, result, winnerID, reason, detail, s.MoveCount,
		s.GameState, s.CreatedAt, s.StartedAt, s.FinishedAt)
	return err
}

// получает сессию по id
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// история партий пользователя, новые первыми
func (r *SessionRepository) HistoryByUser(ctx context.Context, userID int64, limit int) ([]domain.Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// сессии старше порога, по которым нет строки расчета: застрявшие после
// рестарта движка и оборванные на полпути расчеты; их добивает уборщик
func (r *SessionRepository) ListUnsettled(ctx context.Context, before time.Time) ([]domain.Session, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.game_type, s.player1_id, s.player2_id, s.stake_amount_nano, s.rake_bps, s.currency,
			s.status, s.result, s.winner_id, s.reason, s.detail, s.move_count, s.game_state_json,
			s.created_at, s.started_at, s.finished_at
		FROM sessions s
		LEFT JOIN settlements f ON f.session_id = s.id
		WHERE f.session_id IS NULL AND s.created_at < $1
		ORDER BY s.created_at ASC
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// помечает строку рассчитанной с итоговым исходом; уборочный путь для
// сессий, которых уже нет в памяти движка
func (r *SessionRepository) MarkSettled(ctx context.Context, tx pgx.Tx, id uuid.UUID, result string, reason domain.SettleReason) error {
	_, err := tx.Exec(ctx, `
		UPDATE sessions
		SET status = 'settled', result = $2, reason = $3, finished_at = COALESCE(finished_at, NOW())
		WHERE id = $1
	`, id, result, reason)
	return err
}

// число сессий по состояниям - для админ статистики
func (r *SessionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var result, reason, detail *string
	var winnerID *int64

	if err := row.Scan(
		&s.ID, &s.GameType, &s.PlayerA, &s.PlayerB, &s.StakeNano, &s.RakeBps, &s.Currency,
		&s.State, &result, &winnerID, &reason, &detail, &s.MoveCount, &s.GameState,
		&s.CreatedAt, &s.StartedAt, &s.FinishedAt,
	); err != nil {
		return nil, err
	}

	if result != nil {
		out := &domain.Outcome{}
		if reason != nil {
			out.Reason = domain.SettleReason(*reason)
		}
		if detail != nil {
			out.Detail = *detail
		}
		switch *result {
		case "player1_win":
			w := domain.SideA
			out.Winner = &w
		case "player2_win":
			w := domain.SideB
			out.Winner = &w
		}
		s.Outcome = out
	}
	return &s, nil
}

package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/repository"
)

var (
	ErrInsufficientFunds = errors.New("недостаточно средств")
	ErrUserNotFound      = errors.New("пользователь не найден")
	ErrInvalidAmount     = errors.New("неверная сумма")
)

// обрабатывает все операции с внутренним балансом в нанотонах
type BalanceService struct {
	db              *pgxpool.Pool
	transactionRepo *repository.TransactionRepository
}

// создает новый сервис баланса
func NewBalanceService(db *pgxpool.Pool) *BalanceService {
	return &BalanceService{
		db:              db,
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// возвращает текущий баланс пользователя
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `SELECT balance_nano FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

// списывает сумму с баланса пользователя
func (s *BalanceService) Debit(ctx context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (newBalance int64, err error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// блокируем и проверяем баланс
	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance_nano FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	if balance < amount {
		return 0, ErrInsufficientFunds
	}

	// списываем
	err = tx.QueryRow(ctx, `UPDATE users SET balance_nano = balance_nano - $1 WHERE id = $2 RETURNING balance_nano`, amount, userID).Scan(&newBalance)
	if err != nil {
		return 0, err
	}

	// записываем транзакцию
	transaction := &domain.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: -amount,
		Meta:   meta,
	}
	if err = s.transactionRepo.CreateWithTx(ctx, tx, transaction); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// добавляет сумму к балансу пользователя
func (s *BalanceService) Credit(ctx context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (newBalance int64, err error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `UPDATE users SET balance_nano = balance_nano + $1 WHERE id = $2 RETURNING balance_nano`, amount, userID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	// записываем транзакцию
	transaction := &domain.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: amount,
		Meta:   meta,
	}
	if err = s.transactionRepo.CreateWithTx(ctx, tx, transaction); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// HoldStake резервирует ставку при входе в очередь подбора. Резерв
// происходит до создания сессии, поэтому в метаданных только тип игры.
func (s *BalanceService) HoldStake(ctx context.Context, userID int64, stakeNano int64, gameType domain.GameType) (int64, error) {
	return s.Debit(ctx, userID, stakeNano, domain.TxTypeStakeHold, map[string]interface{}{
		"game_type": string(gameType),
	})
}

// RefundStake возвращает резерв, когда матч так и не начался. После
// создания сессии ставка возвращается только расчетом, иначе уборщик,
// закрывающий брошенную сессию ничьей, вернул бы ее второй раз.
func (s *BalanceService) RefundStake(ctx context.Context, userID int64, stakeNano int64, reason string) (int64, error) {
	return s.Credit(ctx, userID, stakeNano, domain.TxTypeStakeRefund, map[string]interface{}{
		"reason": reason,
	})
}

// списывает сумму в рамках существующей транзакции
func (s *BalanceService) DebitWithTx(ctx context.Context, tx pgx.Tx, userID int64, amount int64) (newBalance int64, err error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	// проверяем и списываем одним запросом
	err = tx.QueryRow(ctx,
		`UPDATE users SET balance_nano = balance_nano - $1 WHERE id = $2 AND balance_nano >= $1 RETURNING balance_nano`,
		amount, userID,
	).Scan(&newBalance)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// может быть не найден или недостаточно средств, проверяем что именно
			var exists bool
			_ = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
			if !exists {
				return 0, ErrUserNotFound
			}
			return 0, ErrInsufficientFunds
		}
		return 0, err
	}

	return newBalance, nil
}

// добавляет сумму в рамках существующей транзакции
func (s *BalanceService) CreditWithTx(ctx context.Context, tx pgx.Tx, userID int64, amount int64) (newBalance int64, err error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	err = tx.QueryRow(ctx,
		`UPDATE users SET balance_nano = balance_nano + $1 WHERE id = $2 RETURNING balance_nano`,
		amount, userID,
	).Scan(&newBalance)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	return newBalance, nil
}

// возвращает историю движений по балансу пользователя
func (s *BalanceService) GetTransactionHistory(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	return s.transactionRepo.GetByUserID(ctx, userID, limit)
}

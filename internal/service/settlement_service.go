package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/engine"
	"telegram_arena/internal/logger"
	"telegram_arena/internal/metrics"
	"telegram_arena/internal/repository"
	"telegram_arena/internal/ton"
)

// расчет по этой сессии уже зафиксирован, деньги двигать нельзя
var ErrSettlementExists = errors.New("расчет по сессии уже зафиксирован")

var ErrSessionRowMissing = errors.New("сессия не найдена в базе")

// SettlementNotification содержит итог расчета для уведомлений
type SettlementNotification struct {
	SessionID  uuid.UUID
	GameType   domain.GameType
	StakeNano  int64
	PayoutNano int64
	RakeNano   int64
	Reason     domain.SettleReason
	Draw       bool
	Winner     *domain.User   // nil при ничьей или победе автомата
	Players    []*domain.User // люди в сессии
	Forwarded  bool           // выигрыш поставлен в очередь пересылки на кошелек
}

// SettlementService фиксирует расчеты и двигает внутренние балансы.
// Реализует контракты хранилища и плательщика игрового движка.
type SettlementService struct {
	db              *pgxpool.Pool
	sessionRepo     *repository.SessionRepository
	settlementRepo  *repository.SettlementRepository
	transactionRepo *repository.TransactionRepository
	payoutRepo      *repository.PayoutRepository
	walletRepo      *repository.WalletRepository
	userRepo        *repository.UserRepository
	auditRepo       *repository.AuditRepository

	notifyCallback func(SettlementNotification) // уведомление игроков об итоге
}

// NewSettlementService создает сервис расчетов
func NewSettlementService(db *pgxpool.Pool) *SettlementService {
	return &SettlementService{
		db:              db,
		sessionRepo:     repository.NewSessionRepository(db),
		settlementRepo:  repository.NewSettlementRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		payoutRepo:      repository.NewPayoutRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
		userRepo:        repository.NewUserRepository(db),
		auditRepo:       repository.NewAuditRepository(db),
	}
}

// SetNotifyCallback устанавливает callback для уведомлений об итогах партий
func (s *SettlementService) SetNotifyCallback(callback func(SettlementNotification)) {
	s.notifyCallback = callback
}

// SaveSession сохраняет снимок сессии на каждом переходе жизненного цикла
func (s *SettlementService) SaveSession(ctx context.Context, sess *domain.Session) error {
	return s.sessionRepo.Upsert(ctx, sess)
}

// SaveSettlement фиксирует расчет и двигает внутренние балансы одной
// транзакцией. Вставка расчета с ON CONFLICT DO NOTHING служит замком:
// деньги двигает только тот, кто вставил строку. Повторный вызов чинит
// статус сессии и возвращает ErrSettlementExists.
func (s *SettlementService) SaveSettlement(ctx context.Context, st *domain.Settlement) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := s.settlementRepo.CreateWithTx(ctx, tx, st)
	if err != nil {
		return fmt.Errorf("вставка расчета: %w", err)
	}

	var p1, p2 int64
	err = tx.QueryRow(ctx, `SELECT player1_id, player2_id FROM sessions WHERE id = $1`, st.SessionID).Scan(&p1, &p2)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionRowMissing
		}
		return err
	}

	result := settleResultKey(st, p1)

	if !inserted {
		// кто-то уже рассчитал сессию: добиваем статус и выходим
		if err := s.sessionRepo.MarkSettled(ctx, tx, st.SessionID, result, st.Reason); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return ErrSettlementExists
	}

	if err := s.applyDeltasTx(ctx, tx, st, p1, p2); err != nil {
		return err
	}

	if err := s.sessionRepo.MarkSettled(ctx, tx, st.SessionID, result, st.Reason); err != nil {
		return err
	}

	audit := &domain.AuditLog{
		UserID:   auditSubject(st, p1),
		Action:   domain.AuditActionSettle,
		Category: domain.AuditCategorySettlement,
		Details: map[string]interface{}{
			"session_id":  st.SessionID.String(),
			"result":      result,
			"reason":      string(st.Reason),
			"stake_nano":  st.StakeNano,
			"rake_nano":   st.RakeNano,
			"payout_nano": st.PayoutNano,
		},
	}
	if err := s.auditRepo.CreateWithTx(ctx, tx, audit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	metrics.SessionsSettled.WithLabelValues(string(st.Reason)).Inc()
	metrics.RakeNanoTotal.Add(float64(st.RakeNano))
	return nil
}

// изменение по одному участнику расчета
type settleDelta struct {
	userID     int64
	creditNano int64
	wins       int
	losses     int
	wonNano    int64
}

// начисляет выплаты и обновляет счетчики участников; автомат балансов
// и статистики не имеет и пропускается
func (s *SettlementService) applyDeltasTx(ctx context.Context, tx pgx.Tx, st *domain.Settlement, p1, p2 int64) error {
	var deltas []settleDelta
	for _, id := range []int64{p1, p2} {
		if id == domain.BotID {
			continue
		}
		d := settleDelta{userID: id}
		if st.IsDraw() {
			d.creditNano = st.PayoutNano
		} else if *st.WinnerID == id {
			d.creditNano = st.PayoutNano
			d.wins = 1
			d.wonNano = st.PayoutNano
		} else {
			d.losses = 1
		}
		deltas = append(deltas, d)
	}

	// блокируем строки по возрастанию id, чтобы встречные расчеты
	// не взаимоблокировались
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].userID < deltas[j].userID })
	for _, d := range deltas {
		var locked int64
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, d.userID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
	}

	for _, d := range deltas {
		// баланс и счетчики одним апдейтом
		_, err := tx.Exec(ctx, `
			UPDATE users SET
				balance_nano = balance_nano + $2,
				games_played = games_played + 1,
				total_staked_nano = total_staked_nano + $3,
				wins = wins + $4,
				losses = losses + $5,
				total_won_nano = total_won_nano + $6
			WHERE id = $1
		`, d.userID, d.creditNano, st.StakeNano, d.wins, d.losses, d.wonNano)
		if err != nil {
			return err
		}

		if d.creditNano > 0 {
			ledger := &domain.Transaction{
				UserID: d.userID,
				Type:   domain.TxTypePayout,
				Amount: d.creditNano,
				Meta: map[string]interface{}{
					"session_id": st.SessionID.String(),
					"reason":     string(st.Reason),
				},
			}
			if err := s.transactionRepo.CreateWithTx(ctx, tx, ledger); err != nil {
				return err
			}
		}
	}
	return nil
}

// Payout реализует исходящее плечо расчета: выигрыш человека с
// привязанным проверенным кошельком встает в очередь пересылки в сеть,
// затем уходят уведомления. Внутренние балансы к этому моменту уже
// обновлены фиксацией расчета.
func (s *SettlementService) Payout(ctx context.Context, sess *domain.Session, st *domain.Settlement) error {
	forwarded := false

	// мелочь в сеть не пересылаем, ее съела бы комиссия
	if !st.IsDraw() && st.PayoutNano >= ton.MinForwardNano && *st.WinnerID != domain.BotID {
		wallet, err := s.walletRepo.GetByUserID(ctx, *st.WinnerID)
		if err != nil {
			return fmt.Errorf("поиск кошелька победителя: %w", err)
		}
		if wallet != nil && wallet.IsVerified {
			p := &domain.Payout{
				SessionID:     st.SessionID,
				UserID:        *st.WinnerID,
				WalletAddress: wallet.Address,
				AmountNano:    st.PayoutNano,
				Status:        domain.PayoutStatusPending,
			}
			if err := s.payoutRepo.Create(ctx, p); err != nil {
				return fmt.Errorf("постановка выплаты в очередь: %w", err)
			}
			forwarded = true
			logger.Info("выплата поставлена в очередь пересылки",
				"session_id", st.SessionID,
				"user_id", *st.WinnerID,
				"amount_nano", st.PayoutNano)
		}
	}

	if s.notifyCallback != nil {
		n := s.buildNotification(ctx, sess, st, forwarded)
		go s.notifyCallback(n)
	}
	return nil
}

// собирает данные для уведомления об итоге партии
func (s *SettlementService) buildNotification(ctx context.Context, sess *domain.Session, st *domain.Settlement, forwarded bool) SettlementNotification {
	n := SettlementNotification{
		SessionID:  st.SessionID,
		GameType:   sess.GameType,
		StakeNano:  st.StakeNano,
		PayoutNano: st.PayoutNano,
		RakeNano:   st.RakeNano,
		Reason:     st.Reason,
		Draw:       st.IsDraw(),
		Forwarded:  forwarded,
	}

	for _, id := range []int64{sess.PlayerA, sess.PlayerB} {
		if id == domain.BotID {
			continue
		}
		u, err := s.userRepo.GetByID(ctx, id)
		if err != nil || u == nil {
			logger.Warn("участник расчета не найден для уведомления", "user_id", id, "session_id", st.SessionID)
			continue
		}
		n.Players = append(n.Players, u)
		if st.WinnerID != nil && *st.WinnerID == id {
			n.Winner = u
		}
	}
	return n
}

// SettleStale рассчитывает сессию по строке из базы, когда движок ее
// уже не держит: после рестарта или когда живой расчет оборвался.
// Строки без исхода закрываются ничьей по таймауту.
func (s *SettlementService) SettleStale(ctx context.Context, sess *domain.Session) error {
	if sess.Outcome == nil {
		sess.Outcome = &domain.Outcome{Reason: domain.ReasonTimeout, Detail: "abandoned"}
	}

	st, err := engine.ComputeSettlement(sess, time.Now())
	if err != nil {
		return err
	}
	if err := s.SaveSettlement(ctx, st); err != nil {
		if errors.Is(err, ErrSettlementExists) {
			return nil
		}
		return err
	}

	logger.Info("брошенная сессия рассчитана",
		"session_id", sess.ID,
		"result", sess.Outcome.ResultKey(),
		"payout_nano", st.PayoutNano)

	if err := s.Payout(ctx, sess, st); err != nil {
		logger.Error("выплата по брошенной сессии не прошла", "session_id", sess.ID, "error", err)
	}
	return nil
}

// строка результата для строки сессии в базе
func settleResultKey(st *domain.Settlement, p1 int64) string {
	if st.WinnerID == nil {
		return "draw"
	}
	if *st.WinnerID == p1 {
		return "player1_win"
	}
	return "player2_win"
}

// аудит пишется на победителя, при ничьей на первого игрока
func auditSubject(st *domain.Settlement, p1 int64) int64 {
	if st.WinnerID != nil {
		return *st.WinnerID
	}
	return p1
}

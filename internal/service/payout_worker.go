package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/logger"
	"telegram_arena/internal/metrics"
	"telegram_arena/internal/repository"
	"telegram_arena/internal/ton"
)

// PayoutNotification содержит исход пересылки выигрыша для уведомлений
type PayoutNotification struct {
	PayoutID   int64
	UserID     int64
	Username   string
	TgID       int64
	Address    string
	AmountNano int64
	AmountTON  float64
	TxHash     string
	Failed     bool
	FailReason string
}

// PayoutWorker пересылает зачисленные выигрыши с внутреннего баланса
// на привязанные кошельки победителей.
//
// Порядок на одну выплату строгий: захват строки и списание с баланса
// одной транзакцией БД, затем отправка в сеть, затем отметка sent.
// Если процесс падает между списанием и отправкой, строка остается в
// processing и в сеть повторно не уходит.
type PayoutWorker struct {
	db              *pgxpool.Pool
	payoutRepo      *repository.PayoutRepository
	userRepo        *repository.UserRepository
	transactionRepo *repository.TransactionRepository
	balance         *BalanceService
	audit           *AuditService
	wallet          *ton.Wallet
	interval        time.Duration
	batchSize       int
	mu              sync.Mutex
	stop            chan struct{}
	running         bool
	notifyCallback  func(PayoutNotification)
}

// NewPayoutWorker создает воркер очереди выплат
func NewPayoutWorker(db *pgxpool.Pool, wallet *ton.Wallet, interval time.Duration) *PayoutWorker {
	return &PayoutWorker{
		db:              db,
		payoutRepo:      repository.NewPayoutRepository(db),
		userRepo:        repository.NewUserRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		balance:         NewBalanceService(db),
		audit:           NewAuditService(db),
		wallet:          wallet,
		interval:        interval,
		batchSize:       10,
		stop:            make(chan struct{}),
	}
}

// Start запускает воркер в фоновом режиме
func (w *PayoutWorker) Start() {
	if w.wallet == nil {
		logger.Warn("payout worker: кошелек платформы не настроен, пересылка выплат отключена")
		return
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	log := logger.Get()
	log.Info("запуск payout worker", "interval", w.interval)

	// первоначальная проверка
	w.processQueue()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.processQueue()
		case <-w.stop:
			log.Info("остановка payout worker")
			return
		}
	}
}

// Stop останавливает воркер
func (w *PayoutWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stop)
		w.running = false
	}
}

// SetNotifyCallback устанавливает callback для уведомлений об исходе выплат
func (w *PayoutWorker) SetNotifyCallback(callback func(PayoutNotification)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notifyCallback = callback
}

// processQueue обрабатывает очередные выплаты из очереди
func (w *PayoutWorker) processQueue() {
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pending, err := w.payoutRepo.GetPending(ctx, w.batchSize)
	cancel()
	if err != nil {
		log.Error("payout worker: ошибка чтения очереди", "error", err)
		return
	}

	for i := range pending {
		// отправка ждет подтверждения сети, на каждую выплату свой таймаут
		pctx, pcancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := w.processPayout(pctx, &pending[i]); err != nil {
			log.Error("payout worker: ошибка обработки выплаты",
				"payout_id", pending[i].ID,
				"error", err)
		}
		pcancel()
	}
}

// processPayout пересылает одну выплату
func (w *PayoutWorker) processPayout(ctx context.Context, p *domain.Payout) error {
	log := logger.Get()

	claimed, err := w.claimAndDebit(ctx, p)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			// победитель уже потратил выигрыш внутри платформы
			reason := "на внутреннем балансе не хватает средств"
			if markErr := w.payoutRepo.MarkFailed(ctx, p.ID, reason); markErr != nil {
				return markErr
			}
			metrics.PayoutsForwarded.WithLabelValues("failed").Inc()
			w.audit.LogPayoutFailed(ctx, p.UserID, p.ID, p.AmountNano, reason)
			w.notify(ctx, p, "", reason)
			return nil
		}
		return fmt.Errorf("захват выплаты: %w", err)
	}
	if !claimed {
		return nil
	}

	res, err := w.wallet.SendTON(ctx, p.WalletAddress, uint64(p.AmountNano), payoutComment(p))
	if err != nil {
		// отправка не удалась, возвращаем списанное на внутренний баланс
		if _, creditErr := w.balance.Credit(ctx, p.UserID, p.AmountNano, domain.TxTypeWithdrawalRevert, map[string]interface{}{
			"payout_id":  p.ID,
			"session_id": p.SessionID.String(),
		}); creditErr != nil {
			// списано, не отправлено и не возвращено: строка остается в
			// processing, разбирается вручную по журналу
			log.Error("payout worker: возврат после неудачной отправки не удался",
				"payout_id", p.ID,
				"user_id", p.UserID,
				"amount_nano", p.AmountNano,
				"send_error", err,
				"credit_error", creditErr)
			return creditErr
		}

		reason := fmt.Sprintf("отправка в сеть: %v", err)
		if markErr := w.payoutRepo.MarkFailed(ctx, p.ID, reason); markErr != nil {
			return markErr
		}
		metrics.PayoutsForwarded.WithLabelValues("failed").Inc()
		w.audit.LogPayoutFailed(ctx, p.UserID, p.ID, p.AmountNano, reason)
		w.notify(ctx, p, "", reason)
		log.Warn("payout worker: отправка не удалась, средства возвращены на баланс",
			"payout_id", p.ID,
			"user_id", p.UserID,
			"error", err)
		return nil
	}

	if err := w.payoutRepo.MarkSent(ctx, p.ID, res.TxHash, res.TxLt); err != nil {
		// транзакция в сети уже есть, потеряна только отметка
		log.Error("payout worker: выплата отправлена, но не отмечена",
			"payout_id", p.ID,
			"tx_hash", res.TxHash,
			"error", err)
		return err
	}

	metrics.PayoutsForwarded.WithLabelValues("sent").Inc()
	w.audit.LogPayoutSent(ctx, p.UserID, p.ID, p.AmountNano, res.TxHash)
	w.notify(ctx, p, res.TxHash, "")

	log.Info("payout worker: выигрыш переслан",
		"payout_id", p.ID,
		"user_id", p.UserID,
		"amount_ton", ton.NanoToTON(p.AmountNano),
		"tx_hash", res.TxHash)
	return nil
}

// claimAndDebit захватывает строку выплаты и списывает сумму с внутреннего
// баланса одной транзакцией БД; false без ошибки, если строку уже забрали
func (w *PayoutWorker) claimAndDebit(ctx context.Context, p *domain.Payout) (bool, error) {
	tx, err := w.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE payouts SET status = 'processing' WHERE id = $1 AND status = 'pending'
	`, p.ID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err = w.balance.DebitWithTx(ctx, tx, p.UserID, p.AmountNano); err != nil {
		return false, err
	}

	ledger := &domain.Transaction{
		UserID: p.UserID,
		Type:   domain.TxTypeWithdrawal,
		Amount: -p.AmountNano,
		Meta: map[string]interface{}{
			"payout_id":  p.ID,
			"session_id": p.SessionID.String(),
		},
	}
	if err = w.transactionRepo.CreateWithTx(ctx, tx, ledger); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// notify отправляет уведомление об исходе выплаты
func (w *PayoutWorker) notify(ctx context.Context, p *domain.Payout, txHash, failReason string) {
	w.mu.Lock()
	callback := w.notifyCallback
	w.mu.Unlock()
	if callback == nil {
		return
	}

	n := PayoutNotification{
		PayoutID:   p.ID,
		UserID:     p.UserID,
		Address:    p.WalletAddress,
		AmountNano: p.AmountNano,
		AmountTON:  ton.NanoToTON(p.AmountNano),
		TxHash:     txHash,
		Failed:     failReason != "",
		FailReason: failReason,
	}

	if user, err := w.userRepo.GetByID(ctx, p.UserID); err == nil && user != nil {
		n.Username = user.Username
		n.TgID = user.TgID
	}

	go callback(n)
}

// payoutComment формирует комментарий к транзакции в сети
func payoutComment(p *domain.Payout) string {
	return fmt.Sprintf("Выигрыш %s", p.SessionID.String()[:8])
}

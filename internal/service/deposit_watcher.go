package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/logger"
	"telegram_arena/internal/repository"
	"telegram_arena/internal/ton"
)

// DepositNotification содержит информацию о зачисленном пополнении
type DepositNotification struct {
	UserID         int64
	Username       string
	TgID           int64
	WalletAddress  string
	AmountNano     int64
	TxHash         string
	NewBalanceNano int64
}

// DepositWatcher опрашивает кошелек платформы и зачисляет входящие
// переводы на внутренние балансы. Игрок идентифицируется комментарием
// перевода либо привязанным кошельком-отправителем.
type DepositWatcher struct {
	db          *pgxpool.Pool
	tonClient   *ton.Client
	depositRepo *repository.DepositRepository
	userRepo    *repository.UserRepository
	walletRepo  *repository.WalletRepository
	balance     *BalanceService

	platformWallet string
	interval       time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}

	notifyCallback func(DepositNotification)
}

func NewDepositWatcher(db *pgxpool.Pool, tonClient *ton.Client, platformWallet string, interval time.Duration) *DepositWatcher {
	return &DepositWatcher{
		db:             db,
		tonClient:      tonClient,
		depositRepo:    repository.NewDepositRepository(db),
		userRepo:       repository.NewUserRepository(db),
		walletRepo:     repository.NewWalletRepository(db),
		balance:        NewBalanceService(db),
		platformWallet: platformWallet,
		interval:       interval,
		stop:           make(chan struct{}),
	}
}

// SetNotifyCallback устанавливает callback для уведомлений о пополнениях
func (w *DepositWatcher) SetNotifyCallback(callback func(DepositNotification)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notifyCallback = callback
}

// Start блокирует и крутит цикл опроса до Stop; запускать в горутине
func (w *DepositWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	log := logger.Get()
	log.Info("запуск наблюдателя пополнений", "wallet", w.platformWallet, "interval", w.interval)

	w.checkDeposits()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkDeposits()
		case <-w.stop:
			log.Info("остановка наблюдателя пополнений")
			return
		}
	}
}

// Stop останавливает цикл опроса
func (w *DepositWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		close(w.stop)
		w.running = false
	}
}

func (w *DepositWatcher) checkDeposits() {
	log := logger.Get()

	if w.platformWallet == "" {
		log.Warn("наблюдатель пополнений: адрес платформы не настроен")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	txs, err := w.tonClient.GetTransactions(ctx, w.platformWallet, 50)
	if err != nil {
		log.Error("наблюдатель пополнений: не удалось получить транзакции",
			"wallet", w.platformWallet, "error", err)
		return
	}

	for _, tx := range ton.ParseIncomingTransactions(txs) {
		if err := w.processTransaction(ctx, &tx); err != nil {
			log.Error("наблюдатель пополнений: транзакция не обработана",
				"hash", tx.Hash, "error", err)
		}
	}
}

func (w *DepositWatcher) processTransaction(ctx context.Context, tx *ton.Transaction) error {
	log := logger.Get()

	exists, err := w.depositRepo.TxHashExists(ctx, tx.Hash)
	if err != nil {
		return fmt.Errorf("проверка хэша: %w", err)
	}
	if exists {
		return nil
	}

	sourceAddress := tx.InMsg.Source.Address
	memo := ton.ExtractMemo(tx)

	userID := w.identifyUser(ctx, memo, sourceAddress)
	if userID == 0 {
		log.Debug("наблюдатель пополнений: отправитель не опознан",
			"memo", memo, "source", sourceAddress, "hash", tx.Hash)
		return nil
	}

	user, err := w.userRepo.GetByID(ctx, userID)
	if err != nil || user == nil {
		log.Warn("наблюдатель пополнений: пользователь не найден",
			"userID", userID, "hash", tx.Hash)
		return nil
	}

	amountNano := tx.InMsg.Value
	if amountNano < ton.MinDepositNano {
		log.Debug("наблюдатель пополнений: сумма меньше минимальной",
			"amount", amountNano, "min", ton.MinDepositNano, "hash", tx.Hash)
		return nil
	}

	newBalance, credited, err := w.credit(ctx, user.ID, amountNano, sourceAddress, memo, tx)
	if err != nil {
		return err
	}
	if !credited {
		return nil
	}

	log.Info("наблюдатель пополнений: пополнение зачислено",
		"userID", user.ID,
		"amountTON", ton.NanoToTON(amountNano),
		"newBalance", newBalance,
		"hash", tx.Hash)

	w.mu.Lock()
	notify := w.notifyCallback
	w.mu.Unlock()
	if notify != nil {
		go notify(DepositNotification{
			UserID:         user.ID,
			Username:       user.Username,
			TgID:           user.TgID,
			WalletAddress:  sourceAddress,
			AmountNano:     amountNano,
			TxHash:         tx.Hash,
			NewBalanceNano: newBalance,
		})
	}

	return nil
}

// credit фиксирует пополнение и двигает баланс одной транзакцией.
// Вставка строки deposits с ON CONFLICT DO NOTHING служит замком:
// зачисляет только тот, кто вставил строку.
func (w *DepositWatcher) credit(ctx context.Context, userID, amountNano int64, sourceAddress, memo string, tx *ton.Transaction) (int64, bool, error) {
	dbTx, err := w.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	deposit := &domain.Deposit{
		UserID:        userID,
		WalletAddress: sourceAddress,
		AmountNano:    amountNano,
		TxHash:        tx.Hash,
		TxLt:          tx.Lt,
		Memo:          memo,
	}
	inserted, err := w.depositRepo.CreateWithTx(ctx, dbTx, deposit)
	if err != nil {
		return 0, false, fmt.Errorf("вставка пополнения: %w", err)
	}
	if !inserted {
		return 0, false, nil
	}

	newBalance, err := w.balance.CreditWithTx(ctx, dbTx, userID, amountNano)
	if err != nil {
		return 0, false, fmt.Errorf("зачисление баланса: %w", err)
	}

	record := &domain.Transaction{
		UserID: userID,
		Type:   domain.TxTypeDeposit,
		Amount: amountNano,
		Meta: map[string]interface{}{
			"tx_hash": tx.Hash,
			"source":  sourceAddress,
		},
	}
	if err := w.balance.transactionRepo.CreateWithTx(ctx, dbTx, record); err != nil {
		return 0, false, fmt.Errorf("запись движения: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return newBalance, true, nil
}

// identifyUser определяет получателя: сперва по комментарию перевода,
// затем по привязанному кошельку отправителя
func (w *DepositWatcher) identifyUser(ctx context.Context, memo, sourceAddress string) int64 {
	if memo != "" {
		if id, err := parseUserIDFromMemo(memo); err == nil {
			return id
		}
	}

	// кошелек мог быть привязан в любом из представлений адреса
	variants := []string{sourceAddress}
	if normalized, err := ton.NormalizeAddress(sourceAddress); err == nil && normalized != "" {
		variants = append(variants, normalized)
	}
	if uf, err := ton.RawToUserFriendly(sourceAddress, false); err == nil && uf != "" {
		variants = append(variants, uf)
	}
	if uf, err := ton.RawToUserFriendly(sourceAddress, true); err == nil && uf != "" {
		variants = append(variants, uf)
	}

	for _, addr := range variants {
		if wallet, err := w.walletRepo.GetByAddress(ctx, addr); err == nil && wallet != nil {
			return wallet.UserID
		}
	}
	return 0
}

var memoUserIDRe = regexp.MustCompile(`^(?:deposit_|user_)?(\d+)$`)

// parseUserIDFromMemo извлекает id пользователя из комментария
// перевода; принимаются форматы "123", "user_123", "deposit_123"
func parseUserIDFromMemo(memo string) (int64, error) {
	memo = strings.TrimSpace(memo)

	matches := memoUserIDRe.FindStringSubmatch(memo)
	if len(matches) < 2 {
		return 0, fmt.Errorf("неизвестный формат комментария: %s", memo)
	}

	userID, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("некорректный id в комментарии: %s", memo)
	}
	return userID, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Подключенный TON кошелек - адрес назначения для вывода выигрышей
type Wallet struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int64     `db:"user_id" json:"user_id"`
	Address            string    `db:"address" json:"address"`
	RawAddress         string    `db:"raw_address" json:"raw_address,omitempty"`
	LinkedAt           time.Time `db:"linked_at" json:"linked_at"`
	IsVerified         bool      `db:"is_verified" json:"is_verified"`
	LastProofTimestamp int64     `db:"last_proof_timestamp" json:"last_proof_timestamp,omitempty"`
}

// Исходящая выплата выигрыша на кошелек победителя
type Payout struct {
	ID            int64        `db:"id" json:"id"`
	SessionID     uuid.UUID    `db:"session_id" json:"session_id"`
	UserID        int64        `db:"user_id" json:"user_id"`
	WalletAddress string       `db:"wallet_address" json:"wallet_address"`
	AmountNano    int64        `db:"amount_nano" json:"amount_nano"`
	Status        PayoutStatus `db:"status" json:"status"`
	TxHash        string       `db:"tx_hash" json:"tx_hash,omitempty"`
	TxLt          int64        `db:"tx_lt" json:"tx_lt,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	SentAt        *time.Time   `db:"sent_at" json:"sent_at,omitempty"`
	FailReason    string       `db:"fail_reason" json:"fail_reason,omitempty"`
}

// Входящее пополнение с внешнего кошелька. Уникальность tx_hash
// закрывает повторное зачисление при перечитывании цепочки.
type Deposit struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address,omitempty"`
	AmountNano    int64     `db:"amount_nano" json:"amount_nano"`
	TxHash        string    `db:"tx_hash" json:"tx_hash"`
	TxLt          int64     `db:"tx_lt" json:"tx_lt,omitempty"`
	Memo          string    `db:"memo" json:"memo,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Статус выплаты. Из processing автоматического выхода нет: если
// процесс упал между списанием и отправкой, строку разбирает оператор,
// повторная автоматическая отправка могла бы выплатить дважды.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusSent       PayoutStatus = "sent"
	PayoutStatusFailed     PayoutStatus = "failed"
)

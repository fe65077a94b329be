package domain

import "time"

// Движение по внутреннему балансу пользователя (сумма в нанотонах, со знаком)
type Transaction struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Type      string                 `db:"type" json:"type"`
	Amount    int64                  `db:"amount" json:"amount"`
	Meta      map[string]interface{} `db:"meta" json:"meta,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Типы движений по балансу
const (
	TxTypeStakeHold        = "stake_hold"        // резерв ставки при входе в матч
	TxTypeStakeRefund      = "stake_refund"      // возврат ставки: матч не состоялся
	TxTypePayout           = "payout"            // выигрыш либо возврат при ничьей
	TxTypeDeposit          = "deposit"           // пополнение с кошелька
	TxTypeWithdrawal       = "withdrawal"        // вывод на кошелек
	TxTypeWithdrawalRevert = "withdrawal_revert" // возврат вывода: отправка в сеть не удалась
)

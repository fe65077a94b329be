package domain

import (
	"time"

	"github.com/google/uuid"
)

// Причина завершения партии
type SettleReason string

const (
	ReasonNormalWin   SettleReason = "normal_win"
	ReasonTimeout     SettleReason = "timeout"
	ReasonResignation SettleReason = "resignation"
	ReasonDraw        SettleReason = "draw"
)

// Неизменяемая финансовая запись по рассчитанной сессии.
// Создается ровно один раз, ключ идемпотентности - id сессии.
type Settlement struct {
	SessionID  uuid.UUID    `db:"session_id" json:"session_id"`
	WinnerID   *int64       `db:"winner_id" json:"winner_id,omitempty"` // nil при ничьей
	StakeNano  int64        `db:"stake_nano" json:"stake_nano"`
	RakeNano   int64        `db:"rake_nano" json:"rake_nano"`
	PayoutNano int64        `db:"payout_nano" json:"payout_nano"` // победителю целиком либо каждой стороне при ничьей
	Reason     SettleReason `db:"reason" json:"reason"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// ничейный расчет: банк возвращается по ставке каждому
func (s *Settlement) IsDraw() bool {
	return s.WinnerID == nil
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Тип игры
type GameType string

const (
	GameTypeChess    GameType = "chess"
	GameTypeDice     GameType = "dice"
	GameTypeCoinflip GameType = "coinflip"
	GameTypeRPS      GameType = "rps"
	GameTypeRoulette GameType = "roulette"
)

// проверяет, что тип игры поддерживается движком
func (t GameType) Valid() bool {
	switch t {
	case GameTypeChess, GameTypeDice, GameTypeCoinflip, GameTypeRPS, GameTypeRoulette:
		return true
	}
	return false
}

// Сторона в партии. Сторона A всегда ходит первой.
type Side uint8

const (
	SideA Side = iota
	SideB
)

// возвращает противоположную сторону
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// строковый ключ стороны для хранения и отдачи клиенту
func (s Side) Key() string {
	if s == SideA {
		return "player1"
	}
	return "player2"
}

// Маска сторон, которым сейчас разрешено ходить.
// Для последовательных игр активна ровно одна сторона, для одновременных
// (камень-ножницы-бумага) - обе, пока каждая не зафиксирует выбор.
type TurnMask uint8

const (
	TurnNone TurnMask = 0
	TurnA    TurnMask = 1 << SideA
	TurnB    TurnMask = 1 << SideB
	TurnBoth TurnMask = TurnA | TurnB
)

func (m TurnMask) Has(s Side) bool { return m&(1<<s) != 0 }

// маска из одной стороны
func MaskOf(s Side) TurnMask { return 1 << s }

// Статус жизненного цикла сессии: pending -> in_progress -> terminal -> settled
type SessionState string

const (
	SessionPending    SessionState = "pending"
	SessionInProgress SessionState = "in_progress"
	SessionTerminal   SessionState = "terminal"
	SessionSettled    SessionState = "settled"
)

// BotID занимает место B, когда вместо второго игрока выступает автомат
const BotID int64 = 0

// Исход завершенной партии
type Outcome struct {
	Winner *Side        `json:"winner,omitempty"` // nil при ничьей
	Reason SettleReason `json:"reason"`
	Detail string       `json:"detail,omitempty"` // уточнение от движка: king_captured, no_moves и т.п.
}

// строка результата для хранения: player1_win / player2_win / draw
func (o *Outcome) ResultKey() string {
	if o.Winner == nil {
		return "draw"
	}
	return o.Winner.Key() + "_win"
}

// Одна партия двух сторон со ставкой
type Session struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	GameType   GameType        `db:"game_type" json:"game_type"`
	PlayerA    int64           `db:"player1_id" json:"player1_id"`
	PlayerB    int64           `db:"player2_id" json:"player2_id"` // BotID для игры против автомата
	StakeNano  int64           `db:"stake_amount_nano" json:"stake_amount_nano"`
	RakeBps    int64           `db:"rake_bps" json:"rake_bps"` // комиссия в базисных пунктах, 500 = 5%
	Currency   Currency        `db:"currency" json:"currency"`
	State      SessionState    `db:"status" json:"status"`
	Turn       TurnMask        `db:"-" json:"turn"`
	MoveCount  int             `db:"move_count" json:"move_count"`
	Outcome    *Outcome        `db:"-" json:"outcome,omitempty"`
	GameState  json.RawMessage `db:"game_state_json" json:"-"` // снимок состояния движка
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	StartedAt  *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}

// игра против автомата
func (s *Session) IsBotGame() bool {
	return s.PlayerB == BotID
}

// возвращает сторону, за которой закреплен игрок
func (s *Session) SeatOf(playerID int64) (Side, bool) {
	switch playerID {
	case s.PlayerA:
		return SideA, true
	case s.PlayerB:
		return SideB, true
	}
	return 0, false
}

// возвращает id игрока на стороне
func (s *Session) PlayerOn(side Side) int64 {
	if side == SideA {
		return s.PlayerA
	}
	return s.PlayerB
}

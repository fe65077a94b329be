package game

import (
	"encoding/json"
	"fmt"

	"telegram_arena/internal/domain"
)

// Состояние партии. Конкретный тип принадлежит движку своей игры.
// Значения неизменяемы: Apply возвращает новое состояние, не трогая вход.
type State interface{}

// Ход в терминах конкретной игры
type Move interface{}

// Снятая с доски фигура
type Captured struct {
	Kind PieceKind   `json:"kind"`
	Side domain.Side `json:"side"`
}

// Результат завершенной партии
type Result struct {
	Winner *domain.Side           `json:"winner,omitempty"` // nil при ничьей
	Detail string                 `json:"detail"`           // king_captured, no_moves, equal_total и т.п.
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// Rules - чистый движок правил одной игры. Методы детерминированы и без
// побочных эффектов: повтор партии по seed и журналу ходов восстанавливает
// то же состояние.
type Rules interface {
	Type() domain.GameType

	// начальное состояние; для игр случая seed заранее фиксирует все исходы
	Initial(seed int64) State

	// допустимые ходы стороны в данном состоянии
	Legal(st State, side domain.Side) []Move

	// применяет ход и возвращает новое состояние; ход не из Legal
	// отклоняется с *domain.IllegalMoveError без изменения состояния
	Apply(st State, side domain.Side, mv Move) (State, *Captured, error)

	// nil, пока партия продолжается
	Terminal(st State) *Result

	// маска сторон, которым сейчас разрешено ходить
	Turn(st State) domain.TurnMask

	// разбор хода из сырого JSON клиента
	DecodeMove(raw json.RawMessage) (Move, error)

	// снимок состояния для конкретной стороны: скрывает чужие
	// незафиксированные выборы и нераскрытые исходы
	Project(st State, viewer domain.Side) map[string]interface{}
}

// создает движок правил для типа игры
func ForType(t domain.GameType) (Rules, error) {
	switch t {
	case domain.GameTypeChess:
		return ChessRules{}, nil
	case domain.GameTypeDice:
		return DiceRules{}, nil
	case domain.GameTypeCoinflip:
		return CoinflipRules{}, nil
	case domain.GameTypeRPS:
		return RPSRules{}, nil
	case domain.GameTypeRoulette:
		return RouletteRules{}, nil
	}
	return nil, fmt.Errorf("неизвестный тип игры: %s", t)
}

func illegal(reason string) error {
	return &domain.IllegalMoveError{Reason: reason}
}

package engine

import (
	"math/rand"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/game"
)

// pickBotMove выбирает автомату равновероятный ход из допустимых.
// Возвращает nil, если ходов нет: это терминальное положение, и его
// разбирает машина сессии, автомат сюда попасть не должен.
func pickBotMove(rules game.Rules, st game.State, side domain.Side, intn func(int) int) game.Move {
	moves := rules.Legal(st, side)
	if len(moves) == 0 {
		return nil
	}
	if intn == nil {
		intn = rand.Intn
	}
	return moves[intn(len(moves))]
}

package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Ход отклонен: не входит в множество допустимых либо сделан не в свою очередь.
// Состояние сессии при этом не меняется.
type IllegalMoveError struct {
	Reason string
}

func (e *IllegalMoveError) Error() string {
	return "недопустимый ход: " + e.Reason
}

// Операция вызвана в неподходящем состоянии жизненного цикла сессии
type InvalidSessionStateError struct {
	Op    string
	State SessionState
}

func (e *InvalidSessionStateError) Error() string {
	return fmt.Sprintf("операция %s недоступна в состоянии %s", e.Op, e.State)
}

// Повторная попытка расчета уже рассчитанной сессии.
// Защита от двойной выплаты.
type AlreadySettledError struct {
	SessionID uuid.UUID
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("сессия %s уже рассчитана", e.SessionID)
}

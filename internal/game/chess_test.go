package game

import (
	"errors"
	"testing"

	"telegram_arena/internal/domain"
)

// собирает доску с произвольной расстановкой
func boardWith(t *testing.T, toMove domain.Side, pieces map[[2]int]Piece) ChessState {
	t.Helper()
	st := ChessState{ToMove: toMove}
	for pos, p := range pieces {
		st.Board[pos[0]][pos[1]] = p
	}
	return st
}

// множество клеток назначения для фигуры на (r, c)
func movesFrom(t *testing.T, st ChessState, side domain.Side, r, c int) map[[2]int]bool {
	t.Helper()
	out := make(map[[2]int]bool)
	for _, mv := range (ChessRules{}).Legal(st, side) {
		cm := mv.(ChessMove)
		if cm.FromRow == r && cm.FromCol == c {
			out[[2]int{cm.ToRow, cm.ToCol}] = true
		}
	}
	return out
}

func TestChessInitialPosition(t *testing.T) {
	rl := ChessRules{}
	st := rl.Initial(0).(ChessState)

	if st.ToMove != domain.SideA {
		t.Fatalf("первый ход должен быть за стороной A")
	}
	if st.Board[7][4].Kind != King || st.Board[0][4].Kind != King {
		t.Fatalf("короли должны стоять на e-вертикали")
	}

	// 16 ходов пешками и 4 конями
	if got := len(rl.Legal(st, domain.SideA)); got != 20 {
		t.Fatalf("из начальной позиции ожидается 20 ходов, получено %d", got)
	}
	// не ее очередь - ходов нет
	if got := len(rl.Legal(st, domain.SideB)); got != 0 {
		t.Fatalf("у стороны B не должно быть ходов вне очереди, получено %d", got)
	}
}

func TestChessSlidingStopsAtFirstOccupied(t *testing.T) {
	st := boardWith(t, domain.SideA, map[[2]int]Piece{
		{4, 4}: {Kind: Rook, Side: domain.SideA},
		{4, 6}: {Kind: Pawn, Side: domain.SideA}, // своя фигура справа
		{1, 4}: {Kind: Pawn, Side: domain.SideB}, // противник сверху
	})
	moves := movesFrom(t, st, domain.SideA, 4, 4)

	if !moves[[2]int{4, 5}] {
		t.Fatalf("клетка перед своей фигурой должна быть доступна")
	}
	if moves[[2]int{4, 6}] {
		t.Fatalf("клетка со своей фигурой недоступна")
	}
	if moves[[2]int{4, 7}] {
		t.Fatalf("луч не может продолжаться за занятой клеткой")
	}
	if !moves[[2]int{1, 4}] {
		t.Fatalf("клетка с противником должна быть доступна для взятия")
	}
	if moves[[2]int{0, 4}] {
		t.Fatalf("луч не может продолжаться за взятой фигурой")
	}
}

func TestChessPawnForward(t *testing.T) {
	// со стартовой строки две клетки, если обе пустые
	st := boardWith(t, domain.SideA, map[[2]int]Piece{
		{6, 3}: {Kind: Pawn, Side: domain.SideA},
	})
	moves := movesFrom(t, st, domain.SideA, 6, 3)
	if !moves[[2]int{5, 3}] || !moves[[2]int{4, 3}] {
		t.Fatalf("со стартовой строки ожидаются ходы на одну и две клетки: %v", moves)
	}

	// блок на первой клетке запрещает оба хода
	st = boardWith(t, domain.SideA, map[[2]int]Piece{
		{6, 3}: {Kind: Pawn, Side: domain.SideA},
		{5, 3}: {Kind: Pawn, Side: domain.SideB},
	})
	if got := movesFrom(t, st, domain.SideA, 6, 3); len(got) != 0 {
		t.Fatalf("пешка не ходит вперед через фигуру и не бьет прямо: %v", got)
	}

	// блок только на второй клетке оставляет ход на одну
	st = boardWith(t, domain.SideA, map[[2]int]Piece{
		{6, 3}: {Kind: Pawn, Side: domain.SideA},
		{4, 3}: {Kind: Pawn, Side: domain.SideB},
	})
	moves = movesFrom(t, st, domain.SideA, 6, 3)
	if !moves[[2]int{5, 3}] || moves[[2]int{4, 3}] {
		t.Fatalf("при блоке второй клетки остается только ход на одну: %v", moves)
	}

	// вне стартовой строки только одна клетка
	st = boardWith(t, domain.SideA, map[[2]int]Piece{
		{4, 3}: {Kind: Pawn, Side: domain.SideA},
	})
	moves = movesFrom(t, st, domain.SideA, 4, 3)
	if len(moves) != 1 || !moves[[2]int{3, 3}] {
		t.Fatalf("вне стартовой строки ожидается один ход вперед: %v", moves)
	}
}

func TestChessPawnCaptures(t *testing.T) {
	st := boardWith(t, domain.SideA, map[[2]int]Piece{
		{4, 3}: {Kind: Pawn, Side: domain.SideA},
		{3, 2}: {Kind: Knight, Side: domain.SideB}, // взятие
		{3, 4}: {Kind: Knight, Side: domain.SideA}, // своя, взятия нет
	})
	moves := movesFrom(t, st, domain.SideA, 4, 3)

	if !moves[[2]int{3, 2}] {
		t.Fatalf("пешка должна бить по диагонали фигуру противника")
	}
	if moves[[2]int{3, 4}] {
		t.Fatalf("пешка не бьет свою фигуру")
	}
	if !moves[[2]int{3, 3}] {
		t.Fatalf("ход вперед на пустую клетку должен сохраняться")
	}
}

func TestChessKnightOffsets(t *testing.T) {
	st := boardWith(t, domain.SideA, map[[2]int]Piece{
		{4, 4}: {Kind: Knight, Side: domain.SideA},
	})
	if got := movesFrom(t, st, domain.SideA, 4, 4); len(got) != 8 {
		t.Fatalf("конь в центре пустой доски имеет 8 ходов, получено %d", len(got))
	}

	st = boardWith(t, domain.SideA, map[[2]int]Piece{
		{0, 0}: {Kind: Knight, Side: domain.SideA},
	})
	moves := movesFrom(t, st, domain.SideA, 0, 0)
	if len(moves) != 2 || !moves[[2]int{1, 2}] || !moves[[2]int{2, 1}] {
		t.Fatalf("конь в углу имеет ровно 2 хода, получено %v", moves)
	}
}

func TestChessIllegalMoveRejected(t *testing.T) {
	rl := ChessRules{}
	st := rl.Initial(0)

	// ладья заперта своей пешкой
	_, _, err := rl.Apply(st, domain.SideA, ChessMove{7, 0, 5, 0})
	var ime *domain.IllegalMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("ожидался IllegalMoveError, получено %v", err)
	}

	// состояние не изменилось
	cs := st.(ChessState)
	if cs.Board[7][0].Kind != Rook || !cs.Board[5][0].empty() {
		t.Fatalf("отклоненный ход не должен менять состояние")
	}
}

func TestChessApplyDoesNotMutateInput(t *testing.T) {
	rl := ChessRules{}
	st := rl.Initial(0)

	next, _, err := rl.Apply(st, domain.SideA, ChessMove{6, 4, 4, 4})
	if err != nil {
		t.Fatalf("ход e2-e4 должен быть допустим: %v", err)
	}

	orig := st.(ChessState)
	if orig.Board[6][4].Kind != Pawn {
		t.Fatalf("Apply не должен изменять исходное состояние")
	}
	ns := next.(ChessState)
	if ns.Board[4][4].Kind != Pawn || !ns.Board[6][4].empty() {
		t.Fatalf("в новом состоянии пешка должна переместиться")
	}
	if ns.ToMove != domain.SideB {
		t.Fatalf("после хода очередь переходит стороне B")
	}
}

func TestChessKingCaptureEndsGame(t *testing.T) {
	rl := ChessRules{}
	st := boardWith(t, domain.SideA, map[[2]int]Piece{
		{4, 4}: {Kind: Queen, Side: domain.SideA},
		{1, 4}: {Kind: King, Side: domain.SideB},
		{7, 4}: {Kind: King, Side: domain.SideA},
	})

	next, taken, err := rl.Apply(st, domain.SideA, ChessMove{4, 4, 1, 4})
	if err != nil {
		t.Fatalf("взятие короля должно быть допустимым ходом: %v", err)
	}
	if taken == nil || taken.Kind != King {
		t.Fatalf("ожидалось взятие короля, получено %+v", taken)
	}

	res := rl.Terminal(next)
	if res == nil || res.Winner == nil || *res.Winner != domain.SideA {
		t.Fatalf("взятие короля немедленно выигрывает партию: %+v", res)
	}
	if res.Detail != "king_captured" {
		t.Fatalf("ожидалась причина king_captured, получено %s", res.Detail)
	}
	if rl.Turn(next) != domain.TurnNone {
		t.Fatalf("после взятия короля ходов больше нет")
	}
}

func TestChessNoMovesLoses(t *testing.T) {
	rl := ChessRules{}
	// единственная пешка стороны B заперта и не имеет взятий
	st := boardWith(t, domain.SideB, map[[2]int]Piece{
		{1, 4}: {Kind: Pawn, Side: domain.SideB},
		{2, 4}: {Kind: Pawn, Side: domain.SideA},
	})

	res := rl.Terminal(st)
	if res == nil || res.Winner == nil || *res.Winner != domain.SideA {
		t.Fatalf("сторона без ходов проигрывает: %+v", res)
	}
	if res.Detail != "no_moves" {
		t.Fatalf("ожидалась причина no_moves, получено %s", res.Detail)
	}
}

func TestChessPromotion(t *testing.T) {
	rl := ChessRules{}
	st := boardWith(t, domain.SideA, map[[2]int]Piece{
		{1, 3}: {Kind: Pawn, Side: domain.SideA},
	})

	next, _, err := rl.Apply(st, domain.SideA, ChessMove{1, 3, 0, 3})
	if err != nil {
		t.Fatalf("ход на последнюю линию должен быть допустим: %v", err)
	}
	if got := next.(ChessState).Board[0][3].Kind; got != Queen {
		t.Fatalf("пешка на последней линии становится ферзем, получено %s", got)
	}
}

func TestChessDecodeMoveBounds(t *testing.T) {
	rl := ChessRules{}
	if _, err := rl.DecodeMove([]byte(`{"from_row":6,"from_col":4,"to_row":4,"to_col":4}`)); err != nil {
		t.Fatalf("корректный ход должен разбираться: %v", err)
	}
	if _, err := rl.DecodeMove([]byte(`{"from_row":-1,"from_col":4,"to_row":8,"to_col":4}`)); err == nil {
		t.Fatalf("координаты вне доски должны отклоняться")
	}
	if _, err := rl.DecodeMove([]byte(`не json`)); err == nil {
		t.Fatalf("мусор вместо хода должен отклоняться")
	}
}

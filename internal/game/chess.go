package game

import (
	"encoding/json"
	"fmt"

	"telegram_arena/internal/domain"
)

// Вид фигуры
type PieceKind string

const (
	King   PieceKind = "king"
	Queen  PieceKind = "queen"
	Rook   PieceKind = "rook"
	Bishop PieceKind = "bishop"
	Knight PieceKind = "knight"
	Pawn   PieceKind = "pawn"
)

// Фигура на клетке; пустая клетка - нулевое значение
type Piece struct {
	Kind PieceKind   `json:"kind,omitempty"`
	Side domain.Side `json:"side"`
}

func (p Piece) empty() bool { return p.Kind == "" }

// Состояние шахматной партии. Строка 0 - задняя линия стороны B,
// строка 7 - задняя линия стороны A; сторона A ходит вверх (к строке 0).
type ChessState struct {
	Board     [8][8]Piece  `json:"board"`
	ToMove    domain.Side  `json:"to_move"`
	Captured  []Captured   `json:"captured,omitempty"`
	KingTaken *domain.Side `json:"king_taken,omitempty"` // сторона, потерявшая короля
}

// Ход фигурой; координаты 0..7, строки сверху вниз
type ChessMove struct {
	FromRow int `json:"from_row"`
	FromCol int `json:"from_col"`
	ToRow   int `json:"to_row"`
	ToCol   int `json:"to_col"`
}

// Упрощенные шахматы: без рокировки, взятия на проходе и понятия шаха.
// Партия заканчивается взятием короля либо отсутствием ходов у стороны,
// которая должна ходить.
type ChessRules struct{}

func (ChessRules) Type() domain.GameType { return domain.GameTypeChess }

var backRank = [8]PieceKind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// расстановка фиксированная, seed не используется
func (ChessRules) Initial(seed int64) State {
	st := ChessState{ToMove: domain.SideA}
	for c := 0; c < 8; c++ {
		st.Board[0][c] = Piece{Kind: backRank[c], Side: domain.SideB}
		st.Board[1][c] = Piece{Kind: Pawn, Side: domain.SideB}
		st.Board[6][c] = Piece{Kind: Pawn, Side: domain.SideA}
		st.Board[7][c] = Piece{Kind: backRank[c], Side: domain.SideA}
	}
	return st
}

// Направления хода: прямые для ладьи и ферзя, диагонали для слона и
// ферзя, король шагает на одну клетку во все стороны, конь прыгает по
// восьми смещениям.
var (
	rookDirs   = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopDirs = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	kingSteps  = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	knightHops = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
)

func onBoard(r, c int) bool { return r >= 0 && r < 8 && c >= 0 && c < 8 }

// направление движения пешек стороны: A идет вверх, B вниз
func pawnDir(s domain.Side) int {
	if s == domain.SideA {
		return -1
	}
	return 1
}

// стартовая строка пешек стороны
func pawnHomeRow(s domain.Side) int {
	if s == domain.SideA {
		return 6
	}
	return 1
}

func (ChessRules) Legal(st State, side domain.Side) []Move {
	cs, ok := st.(ChessState)
	if !ok {
		return nil
	}
	if cs.ToMove != side || cs.KingTaken != nil {
		return nil
	}

	var out []Move
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			p := cs.Board[r][c]
			if p.empty() || p.Side != side {
				continue
			}
			for _, mv := range pieceMoves(&cs, r, c) {
				out = append(out, mv)
			}
		}
	}
	return out
}

// все допустимые ходы фигуры на клетке (r, c)
func pieceMoves(cs *ChessState, r, c int) []ChessMove {
	p := cs.Board[r][c]
	var out []ChessMove

	step := func(dr, dc int) {
		tr, tc := r+dr, c+dc
		if !onBoard(tr, tc) {
			return
		}
		t := cs.Board[tr][tc]
		if t.empty() || t.Side != p.Side {
			out = append(out, ChessMove{r, c, tr, tc})
		}
	}

	// скользящая фигура идет по лучу до первой занятой клетки;
	// занятая клетка включается, только если там противник
	slide := func(dirs [4][2]int) {
		for _, d := range dirs {
			tr, tc := r+d[0], c+d[1]
			for onBoard(tr, tc) {
				t := cs.Board[tr][tc]
				if t.empty() {
					out = append(out, ChessMove{r, c, tr, tc})
					tr, tc = tr+d[0], tc+d[1]
					continue
				}
				if t.Side != p.Side {
					out = append(out, ChessMove{r, c, tr, tc})
				}
				break
			}
		}
	}

	switch p.Kind {
	case Rook:
		slide(rookDirs)
	case Bishop:
		slide(bishopDirs)
	case Queen:
		slide(rookDirs)
		slide(bishopDirs)
	case King:
		for _, d := range kingSteps {
			step(d[0], d[1])
		}
	case Knight:
		for _, d := range knightHops {
			step(d[0], d[1])
		}
	case Pawn:
		dir := pawnDir(p.Side)
		// вперед только на пустую клетку
		if onBoard(r+dir, c) && cs.Board[r+dir][c].empty() {
			out = append(out, ChessMove{r, c, r + dir, c})
			// две клетки со стартовой строки, обе должны быть пустыми
			if r == pawnHomeRow(p.Side) && onBoard(r+2*dir, c) && cs.Board[r+2*dir][c].empty() {
				out = append(out, ChessMove{r, c, r + 2*dir, c})
			}
		}
		// взятие только по диагонали на фигуру противника
		for _, dc := range [2]int{-1, 1} {
			tr, tc := r+dir, c+dc
			if !onBoard(tr, tc) {
				continue
			}
			t := cs.Board[tr][tc]
			if !t.empty() && t.Side != p.Side {
				out = append(out, ChessMove{r, c, tr, tc})
			}
		}
	}
	return out
}

func (rl ChessRules) Apply(st State, side domain.Side, mv Move) (State, *Captured, error) {
	cs, ok := st.(ChessState)
	if !ok {
		return st, nil, illegal("неверное состояние партии")
	}
	cm, ok := mv.(ChessMove)
	if !ok {
		return st, nil, illegal("неверный формат хода")
	}

	found := false
	for _, lm := range rl.Legal(cs, side) {
		if lm.(ChessMove) == cm {
			found = true
			break
		}
	}
	if !found {
		return st, nil, illegal(fmt.Sprintf("ход %d,%d -> %d,%d не разрешен", cm.FromRow, cm.FromCol, cm.ToRow, cm.ToCol))
	}

	// массив доски копируется присваиванием
	next := cs
	next.Captured = append([]Captured(nil), cs.Captured...)

	moving := next.Board[cm.FromRow][cm.FromCol]
	target := next.Board[cm.ToRow][cm.ToCol]

	var captured *Captured
	if !target.empty() {
		cp := Captured{Kind: target.Kind, Side: target.Side}
		next.Captured = append(next.Captured, cp)
		captured = &cp
		if target.Kind == King {
			taken := target.Side
			next.KingTaken = &taken
		}
	}

	// пешка на последней линии становится ферзем
	if moving.Kind == Pawn && (cm.ToRow == 0 || cm.ToRow == 7) {
		moving.Kind = Queen
	}

	next.Board[cm.ToRow][cm.ToCol] = moving
	next.Board[cm.FromRow][cm.FromCol] = Piece{}
	next.ToMove = side.Opponent()

	return next, captured, nil
}

func (rl ChessRules) Terminal(st State) *Result {
	cs, ok := st.(ChessState)
	if !ok {
		return nil
	}
	if cs.KingTaken != nil {
		w := cs.KingTaken.Opponent()
		return &Result{Winner: &w, Detail: "king_captured"}
	}
	// сторона на ходу без единого хода проигрывает
	if len(rl.Legal(cs, cs.ToMove)) == 0 {
		w := cs.ToMove.Opponent()
		return &Result{Winner: &w, Detail: "no_moves"}
	}
	return nil
}

func (ChessRules) Turn(st State) domain.TurnMask {
	cs, ok := st.(ChessState)
	if !ok {
		return domain.TurnNone
	}
	if cs.KingTaken != nil {
		return domain.TurnNone
	}
	if cs.ToMove == domain.SideA {
		return domain.TurnA
	}
	return domain.TurnB
}

func (ChessRules) DecodeMove(raw json.RawMessage) (Move, error) {
	var cm ChessMove
	if err := json.Unmarshal(raw, &cm); err != nil {
		return nil, illegal("не удалось разобрать ход")
	}
	if !onBoard(cm.FromRow, cm.FromCol) || !onBoard(cm.ToRow, cm.ToCol) {
		return nil, illegal("координаты вне доски")
	}
	return cm, nil
}

// доска открыта обеим сторонам, скрывать нечего
func (ChessRules) Project(st State, viewer domain.Side) map[string]interface{} {
	cs, ok := st.(ChessState)
	if !ok {
		return nil
	}

	board := make([][]interface{}, 8)
	for r := 0; r < 8; r++ {
		board[r] = make([]interface{}, 8)
		for c := 0; c < 8; c++ {
			p := cs.Board[r][c]
			if p.empty() {
				continue
			}
			board[r][c] = map[string]interface{}{
				"kind": string(p.Kind),
				"side": p.Side.Key(),
			}
		}
	}

	out := map[string]interface{}{
		"type":     "chess",
		"board":    board,
		"to_move":  cs.ToMove.Key(),
		"captured": cs.Captured,
	}
	if cs.KingTaken != nil {
		out["king_taken"] = cs.KingTaken.Key()
	}
	return out
}

package game

import (
	"encoding/json"
	"math/rand"

	"telegram_arena/internal/domain"
)

const (
	DiceSides   = 6
	DicePerSide = 2 // каждая сторона бросает два кубика
)

// Состояние партии в кости. Броски обеих сторон предвычислены из seed
// при создании, команда roll лишь раскрывает свои кубики. Выше сумма -
// победа, равные суммы - ничья.
type DiceState struct {
	Dice     [2][DicePerSide]int `json:"dice"`
	Revealed [2]bool             `json:"revealed"`
}

// Единственный ход в костях
type DiceMove struct {
	Action string `json:"action"` // всегда "roll"
}

type DiceRules struct{}

func (DiceRules) Type() domain.GameType { return domain.GameTypeDice }

func (DiceRules) Initial(seed int64) State {
	rng := rand.New(rand.NewSource(seed))
	var st DiceState
	for s := 0; s < 2; s++ {
		for i := 0; i < DicePerSide; i++ {
			st.Dice[s][i] = rng.Intn(DiceSides) + 1
		}
	}
	return st
}

func (DiceRules) Legal(st State, side domain.Side) []Move {
	ds, ok := st.(DiceState)
	if !ok || ds.Revealed[side] {
		return nil
	}
	return []Move{DiceMove{Action: "roll"}}
}

func (DiceRules) Apply(st State, side domain.Side, mv Move) (State, *Captured, error) {
	ds, ok := st.(DiceState)
	if !ok {
		return st, nil, illegal("неверное состояние партии")
	}
	dm, ok := mv.(DiceMove)
	if !ok || dm.Action != "roll" {
		return st, nil, illegal("ожидается ход roll")
	}
	if ds.Revealed[side] {
		return st, nil, illegal("бросок уже сделан")
	}

	next := ds
	next.Revealed[side] = true
	return next, nil, nil
}

func diceTotal(ds DiceState, side domain.Side) int {
	total := 0
	for _, d := range ds.Dice[side] {
		total += d
	}
	return total
}

// партия из одного раунда: оба раскрыли броски - исход известен
func (DiceRules) Terminal(st State) *Result {
	ds, ok := st.(DiceState)
	if !ok || !ds.Revealed[0] || !ds.Revealed[1] {
		return nil
	}

	a, b := diceTotal(ds, domain.SideA), diceTotal(ds, domain.SideB)
	extra := map[string]interface{}{"totals": []int{a, b}}
	switch {
	case a > b:
		w := domain.SideA
		return &Result{Winner: &w, Detail: "higher_total", Extra: extra}
	case b > a:
		w := domain.SideB
		return &Result{Winner: &w, Detail: "higher_total", Extra: extra}
	default:
		return &Result{Detail: "equal_total", Extra: extra}
	}
}

func (DiceRules) Turn(st State) domain.TurnMask {
	ds, ok := st.(DiceState)
	if !ok {
		return domain.TurnNone
	}
	mask := domain.TurnNone
	if !ds.Revealed[domain.SideA] {
		mask |= domain.TurnA
	}
	if !ds.Revealed[domain.SideB] {
		mask |= domain.TurnB
	}
	return mask
}

func (DiceRules) DecodeMove(raw json.RawMessage) (Move, error) {
	var dm DiceMove
	if err := json.Unmarshal(raw, &dm); err != nil {
		return nil, illegal("не удалось разобрать ход")
	}
	return dm, nil
}

// кубики стороны видны после её броска, оба набора - после обоих
func (DiceRules) Project(st State, viewer domain.Side) map[string]interface{} {
	ds, ok := st.(DiceState)
	if !ok {
		return nil
	}

	out := map[string]interface{}{
		"type":     "dice",
		"revealed": []bool{ds.Revealed[0], ds.Revealed[1]},
	}
	both := ds.Revealed[0] && ds.Revealed[1]
	if ds.Revealed[viewer] {
		out["your_dice"] = ds.Dice[viewer]
		out["your_total"] = diceTotal(ds, viewer)
	}
	if both {
		opp := viewer.Opponent()
		out["opponent_dice"] = ds.Dice[opp]
		out["opponent_total"] = diceTotal(ds, opp)
	}
	return out
}

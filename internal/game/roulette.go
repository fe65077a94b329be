package game

import (
	"encoding/json"
	"math/rand"

	"telegram_arena/internal/domain"
)

// Карманы европейской рулетки: 0 зеленый, остальные красные либо черные
const RoulettePockets = 37

var rouletteRed = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true,
	14: true, 16: true, 18: true, 19: true, 21: true, 23: true,
	25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// цвет кармана: red, black либо green для нуля
func PocketColor(pocket int) string {
	if pocket == 0 {
		return "green"
	}
	if rouletteRed[pocket] {
		return "red"
	}
	return "black"
}

// Состояние партии в рулетку. Сторона A играет за красное, сторона B за
// черное; карман предвычислен из seed, команда spin фиксирует готовность.
// Зеро - ничья.
type RouletteState struct {
	Pocket    int     `json:"pocket"` // 0..36
	Committed [2]bool `json:"committed"`
}

type RouletteMove struct {
	Action string `json:"action"` // всегда "spin"
}

type RouletteRules struct{}

func (RouletteRules) Type() domain.GameType { return domain.GameTypeRoulette }

func (RouletteRules) Initial(seed int64) State {
	rng := rand.New(rand.NewSource(seed))
	return RouletteState{Pocket: rng.Intn(RoulettePockets)}
}

func (RouletteRules) Legal(st State, side domain.Side) []Move {
	rs, ok := st.(RouletteState)
	if !ok || rs.Committed[side] {
		return nil
	}
	return []Move{RouletteMove{Action: "spin"}}
}

func (RouletteRules) Apply(st State, side domain.Side, mv Move) (State, *Captured, error) {
	rs, ok := st.(RouletteState)
	if !ok {
		return st, nil, illegal("неверное состояние партии")
	}
	rm, ok := mv.(RouletteMove)
	if !ok || rm.Action != "spin" {
		return st, nil, illegal("ожидается ход spin")
	}
	if rs.Committed[side] {
		return st, nil, illegal("вращение уже подтверждено")
	}

	next := rs
	next.Committed[side] = true
	return next, nil, nil
}

func (RouletteRules) Terminal(st State) *Result {
	rs, ok := st.(RouletteState)
	if !ok || !rs.Committed[0] || !rs.Committed[1] {
		return nil
	}

	color := PocketColor(rs.Pocket)
	extra := map[string]interface{}{"pocket": rs.Pocket, "color": color}
	switch color {
	case "red":
		w := domain.SideA
		return &Result{Winner: &w, Detail: "pocket_red", Extra: extra}
	case "black":
		w := domain.SideB
		return &Result{Winner: &w, Detail: "pocket_black", Extra: extra}
	default:
		return &Result{Detail: "pocket_zero", Extra: extra}
	}
}

func (RouletteRules) Turn(st State) domain.TurnMask {
	rs, ok := st.(RouletteState)
	if !ok {
		return domain.TurnNone
	}
	mask := domain.TurnNone
	if !rs.Committed[domain.SideA] {
		mask |= domain.TurnA
	}
	if !rs.Committed[domain.SideB] {
		mask |= domain.TurnB
	}
	return mask
}

func (RouletteRules) DecodeMove(raw json.RawMessage) (Move, error) {
	var rm RouletteMove
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, illegal("не удалось разобрать ход")
	}
	return rm, nil
}

// карман скрыт до подтверждения обеих сторон
func (RouletteRules) Project(st State, viewer domain.Side) map[string]interface{} {
	rs, ok := st.(RouletteState)
	if !ok {
		return nil
	}

	yourColor := "red"
	if viewer == domain.SideB {
		yourColor = "black"
	}
	out := map[string]interface{}{
		"type":       "roulette",
		"your_color": yourColor,
		"committed":  []bool{rs.Committed[0], rs.Committed[1]},
	}
	if rs.Committed[0] && rs.Committed[1] {
		out["pocket"] = rs.Pocket
		out["color"] = PocketColor(rs.Pocket)
	}
	return out
}

package game

import (
	"encoding/json"
	"math/rand"

	"telegram_arena/internal/domain"
)

const (
	CoinHeads = "heads"
	CoinTails = "tails"
)

// Состояние подбрасывания монеты. Сторона A играет за орла, сторона B за
// решку; исход предвычислен из seed, команда flip фиксирует готовность.
type CoinflipState struct {
	Result    string  `json:"result"` // heads либо tails
	Committed [2]bool `json:"committed"`
}

type CoinflipMove struct {
	Action string `json:"action"` // всегда "flip"
}

type CoinflipRules struct{}

func (CoinflipRules) Type() domain.GameType { return domain.GameTypeCoinflip }

func (CoinflipRules) Initial(seed int64) State {
	rng := rand.New(rand.NewSource(seed))
	st := CoinflipState{Result: CoinHeads}
	if rng.Intn(2) == 1 {
		st.Result = CoinTails
	}
	return st
}

func (CoinflipRules) Legal(st State, side domain.Side) []Move {
	cf, ok := st.(CoinflipState)
	if !ok || cf.Committed[side] {
		return nil
	}
	return []Move{CoinflipMove{Action: "flip"}}
}

func (CoinflipRules) Apply(st State, side domain.Side, mv Move) (State, *Captured, error) {
	cf, ok := st.(CoinflipState)
	if !ok {
		return st, nil, illegal("неверное состояние партии")
	}
	cm, ok := mv.(CoinflipMove)
	if !ok || cm.Action != "flip" {
		return st, nil, illegal("ожидается ход flip")
	}
	if cf.Committed[side] {
		return st, nil, illegal("бросок уже подтвержден")
	}

	next := cf
	next.Committed[side] = true
	return next, nil, nil
}

// одна монета решает партию; ничьей здесь не бывает
func (CoinflipRules) Terminal(st State) *Result {
	cf, ok := st.(CoinflipState)
	if !ok || !cf.Committed[0] || !cf.Committed[1] {
		return nil
	}

	w := domain.SideA
	if cf.Result == CoinTails {
		w = domain.SideB
	}
	return &Result{
		Winner: &w,
		Detail: "coin_" + cf.Result,
		Extra:  map[string]interface{}{"result": cf.Result},
	}
}

func (CoinflipRules) Turn(st State) domain.TurnMask {
	cf, ok := st.(CoinflipState)
	if !ok {
		return domain.TurnNone
	}
	mask := domain.TurnNone
	if !cf.Committed[domain.SideA] {
		mask |= domain.TurnA
	}
	if !cf.Committed[domain.SideB] {
		mask |= domain.TurnB
	}
	return mask
}

func (CoinflipRules) DecodeMove(raw json.RawMessage) (Move, error) {
	var cm CoinflipMove
	if err := json.Unmarshal(raw, &cm); err != nil {
		return nil, illegal("не удалось разобрать ход")
	}
	return cm, nil
}

// исход монеты скрыт, пока обе стороны не подтвердили бросок
func (CoinflipRules) Project(st State, viewer domain.Side) map[string]interface{} {
	cf, ok := st.(CoinflipState)
	if !ok {
		return nil
	}

	yourCoin := CoinHeads
	if viewer == domain.SideB {
		yourCoin = CoinTails
	}
	out := map[string]interface{}{
		"type":      "coinflip",
		"your_coin": yourCoin,
		"committed": []bool{cf.Committed[0], cf.Committed[1]},
	}
	if cf.Committed[0] && cf.Committed[1] {
		out["result"] = cf.Result
	}
	return out
}

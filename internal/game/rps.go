package game

import (
	"encoding/json"

	"telegram_arena/internal/domain"
)

// Первый, кто возьмет три раунда, выигрывает матч
const RPSWinsNeeded = 3

var rpsPicks = map[string]bool{"rock": true, "paper": true, "scissors": true}

// Итог сыгранного раунда - для отображения клиенту
type RPSRound struct {
	Picks  [2]string    `json:"picks"`
	Winner *domain.Side `json:"winner,omitempty"`
}

// Состояние матча камень-ножницы-бумага. Выборы текущего раунда копятся
// в Picks и разрешаются, как только обе стороны определились; ничейные
// раунды переигрываются и в счет не идут.
type RPSState struct {
	Picks     [2]string `json:"picks"` // "" - выбор еще не сделан
	Score     [2]int    `json:"score"`
	Rounds    int       `json:"rounds"`
	LastRound *RPSRound `json:"last_round,omitempty"`
}

type RPSMove struct {
	Pick string `json:"pick"` // rock, paper либо scissors
}

type RPSRules struct{}

func (RPSRules) Type() domain.GameType { return domain.GameTypeRPS }

func (RPSRules) Initial(seed int64) State {
	return RPSState{}
}

func rpsDone(st RPSState) bool {
	return st.Score[domain.SideA] >= RPSWinsNeeded || st.Score[domain.SideB] >= RPSWinsNeeded
}

func (RPSRules) Legal(st State, side domain.Side) []Move {
	rs, ok := st.(RPSState)
	if !ok || rpsDone(rs) || rs.Picks[side] != "" {
		return nil
	}
	return []Move{
		RPSMove{Pick: "rock"},
		RPSMove{Pick: "paper"},
		RPSMove{Pick: "scissors"},
	}
}

// определяет победителя одного раунда; nil при ничьей
func roundWinner(pickA, pickB string) *domain.Side {
	if pickA == pickB {
		return nil
	}
	beats := map[string]string{
		"rock":     "scissors",
		"paper":    "rock",
		"scissors": "paper",
	}
	w := domain.SideB
	if beats[pickA] == pickB {
		w = domain.SideA
	}
	return &w
}

func (RPSRules) Apply(st State, side domain.Side, mv Move) (State, *Captured, error) {
	rs, ok := st.(RPSState)
	if !ok {
		return st, nil, illegal("неверное состояние партии")
	}
	rm, ok := mv.(RPSMove)
	if !ok || !rpsPicks[rm.Pick] {
		return st, nil, illegal("неверное значение хода")
	}
	if rpsDone(rs) {
		return st, nil, illegal("матч уже завершен")
	}
	if rs.Picks[side] != "" {
		return st, nil, illegal("выбор в этом раунде уже сделан")
	}

	next := rs
	next.Picks[side] = rm.Pick

	// обе стороны определились - раунд разрешается сразу
	if next.Picks[0] != "" && next.Picks[1] != "" {
		round := RPSRound{Picks: next.Picks, Winner: roundWinner(next.Picks[0], next.Picks[1])}
		if round.Winner != nil {
			next.Score[*round.Winner]++
		}
		next.Rounds++
		next.LastRound = &round
		next.Picks = [2]string{}
	}
	return next, nil, nil
}

func (RPSRules) Terminal(st State) *Result {
	rs, ok := st.(RPSState)
	if !ok || !rpsDone(rs) {
		return nil
	}

	w := domain.SideA
	if rs.Score[domain.SideB] >= RPSWinsNeeded {
		w = domain.SideB
	}
	return &Result{
		Winner: &w,
		Detail: "first_to_three",
		Extra: map[string]interface{}{
			"score":  []int{rs.Score[0], rs.Score[1]},
			"rounds": rs.Rounds,
		},
	}
}

func (RPSRules) Turn(st State) domain.TurnMask {
	rs, ok := st.(RPSState)
	if !ok || rpsDone(rs) {
		return domain.TurnNone
	}
	mask := domain.TurnNone
	if rs.Picks[domain.SideA] == "" {
		mask |= domain.TurnA
	}
	if rs.Picks[domain.SideB] == "" {
		mask |= domain.TurnB
	}
	return mask
}

func (RPSRules) DecodeMove(raw json.RawMessage) (Move, error) {
	var rm RPSMove
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, illegal("не удалось разобрать ход")
	}
	return rm, nil
}

// чужой незафиксированный выбор никогда не раскрывается
func (RPSRules) Project(st State, viewer domain.Side) map[string]interface{} {
	rs, ok := st.(RPSState)
	if !ok {
		return nil
	}

	opp := viewer.Opponent()
	out := map[string]interface{}{
		"type":               "rps",
		"score":              []int{rs.Score[0], rs.Score[1]},
		"rounds":             rs.Rounds,
		"your_pick":          rs.Picks[viewer],
		"opponent_committed": rs.Picks[opp] != "",
	}
	if rs.LastRound != nil {
		last := map[string]interface{}{
			"your_pick":     rs.LastRound.Picks[viewer],
			"opponent_pick": rs.LastRound.Picks[opp],
		}
		if rs.LastRound.Winner != nil {
			last["winner"] = rs.LastRound.Winner.Key()
		}
		out["last_round"] = last
	}
	return out
}

package game

import (
	"errors"
	"reflect"
	"testing"

	"telegram_arena/internal/domain"
)

// Игры случая раскрывают заранее предвычисленный исход: один и тот же
// seed обязан давать одну и ту же партию.
func TestChanceDeterministicBySeed(t *testing.T) {
	for _, rl := range []Rules{DiceRules{}, CoinflipRules{}, RouletteRules{}} {
		a := rl.Initial(42)
		b := rl.Initial(42)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("%s: одинаковый seed должен давать одинаковое состояние", rl.Type())
		}
	}
}

func TestDiceRevealFlow(t *testing.T) {
	rl := DiceRules{}
	st := DiceState{Dice: [2][DicePerSide]int{{6, 5}, {2, 1}}}

	if rl.Terminal(st) != nil {
		t.Fatalf("до бросков исход неизвестен")
	}
	if mask := rl.Turn(st); mask != domain.TurnBoth {
		t.Fatalf("бросать могут обе стороны, маска %v", mask)
	}

	st1, _, err := rl.Apply(st, domain.SideA, DiceMove{Action: "roll"})
	if err != nil {
		t.Fatalf("бросок должен приниматься: %v", err)
	}
	if rl.Terminal(st1) != nil {
		t.Fatalf("после одного броска партия продолжается")
	}

	// повторный бросок той же стороны отклоняется
	var ime *domain.IllegalMoveError
	if _, _, err := rl.Apply(st1, domain.SideA, DiceMove{Action: "roll"}); !errors.As(err, &ime) {
		t.Fatalf("повторный бросок должен отклоняться: %v", err)
	}

	st2, _, err := rl.Apply(st1, domain.SideB, DiceMove{Action: "roll"})
	if err != nil {
		t.Fatalf("бросок второй стороны должен приниматься: %v", err)
	}

	res := rl.Terminal(st2)
	if res == nil || res.Winner == nil || *res.Winner != domain.SideA {
		t.Fatalf("11 против 3 выигрывает сторона A: %+v", res)
	}
	if res.Detail != "higher_total" {
		t.Fatalf("ожидалась причина higher_total, получено %s", res.Detail)
	}
}

func TestDiceEqualTotalsDraw(t *testing.T) {
	rl := DiceRules{}
	st := DiceState{
		Dice:     [2][DicePerSide]int{{3, 4}, {5, 2}},
		Revealed: [2]bool{true, true},
	}

	res := rl.Terminal(st)
	if res == nil || res.Winner != nil {
		t.Fatalf("равные суммы дают ничью: %+v", res)
	}
	if res.Detail != "equal_total" {
		t.Fatalf("ожидалась причина equal_total, получено %s", res.Detail)
	}
}

func TestDiceProjectionHidesUnrevealed(t *testing.T) {
	rl := DiceRules{}
	st := DiceState{Dice: [2][DicePerSide]int{{6, 6}, {1, 1}}}
	st1, _, _ := rl.Apply(st, domain.SideA, DiceMove{Action: "roll"})

	// сторона B еще не бросала и чужих кубиков не видит
	view := rl.Project(st1, domain.SideB)
	if _, ok := view["your_dice"]; ok {
		t.Fatalf("нераскрытые кубики не должны быть видны")
	}
	if _, ok := view["opponent_dice"]; ok {
		t.Fatalf("чужие кубики видны только после обоих бросков")
	}

	own := rl.Project(st1, domain.SideA)
	if _, ok := own["your_dice"]; !ok {
		t.Fatalf("свои кубики видны после собственного броска")
	}
}

func TestCoinflipDecidesByCoin(t *testing.T) {
	rl := CoinflipRules{}

	for _, tc := range []struct {
		result string
		winner domain.Side
	}{
		{CoinHeads, domain.SideA},
		{CoinTails, domain.SideB},
	} {
		st := CoinflipState{Result: tc.result, Committed: [2]bool{true, true}}
		res := rl.Terminal(st)
		if res == nil || res.Winner == nil || *res.Winner != tc.winner {
			t.Fatalf("%s: монета должна отдавать победу стороне %v: %+v", tc.result, tc.winner, res)
		}
	}
}

func TestCoinflipHidesResultUntilBothCommit(t *testing.T) {
	rl := CoinflipRules{}
	st := CoinflipState{Result: CoinTails}

	st1, _, err := rl.Apply(st, domain.SideB, CoinflipMove{Action: "flip"})
	if err != nil {
		t.Fatalf("подтверждение должно приниматься: %v", err)
	}

	view := rl.Project(st1, domain.SideA)
	if _, ok := view["result"]; ok {
		t.Fatalf("исход монеты скрыт до подтверждения обеих сторон")
	}
	if view["your_coin"] != CoinHeads {
		t.Fatalf("сторона A всегда играет за орла")
	}

	st2, _, _ := rl.Apply(st1, domain.SideA, CoinflipMove{Action: "flip"})
	view = rl.Project(st2, domain.SideA)
	if view["result"] != CoinTails {
		t.Fatalf("после обоих подтверждений исход открыт")
	}
}

func TestRoulettePocketColors(t *testing.T) {
	for _, tc := range []struct {
		pocket int
		color  string
	}{
		{0, "green"},
		{1, "red"},
		{2, "black"},
		{18, "red"},
		{19, "red"},
		{35, "black"},
		{36, "red"},
	} {
		if got := PocketColor(tc.pocket); got != tc.color {
			t.Fatalf("карман %d: ожидался цвет %s, получен %s", tc.pocket, tc.color, got)
		}
	}
}

func TestRouletteOutcomes(t *testing.T) {
	rl := RouletteRules{}

	// красное - победа A
	st := RouletteState{Pocket: 32, Committed: [2]bool{true, true}}
	res := rl.Terminal(st)
	if res == nil || res.Winner == nil || *res.Winner != domain.SideA {
		t.Fatalf("красный карман выигрывает сторона A: %+v", res)
	}

	// черное - победа B
	st = RouletteState{Pocket: 26, Committed: [2]bool{true, true}}
	res = rl.Terminal(st)
	if res == nil || res.Winner == nil || *res.Winner != domain.SideB {
		t.Fatalf("черный карман выигрывает сторона B: %+v", res)
	}

	// зеро - ничья
	st = RouletteState{Pocket: 0, Committed: [2]bool{true, true}}
	res = rl.Terminal(st)
	if res == nil || res.Winner != nil || res.Detail != "pocket_zero" {
		t.Fatalf("зеро дает ничью: %+v", res)
	}
}

func TestChanceSeedWithinRange(t *testing.T) {
	// карман и кубики всегда в своих диапазонах независимо от seed
	for seed := int64(0); seed < 200; seed++ {
		ds := DiceRules{}.Initial(seed).(DiceState)
		for s := 0; s < 2; s++ {
			for _, d := range ds.Dice[s] {
				if d < 1 || d > DiceSides {
					t.Fatalf("seed %d: кубик вне диапазона: %d", seed, d)
				}
			}
		}
		rs := RouletteRules{}.Initial(seed).(RouletteState)
		if rs.Pocket < 0 || rs.Pocket >= RoulettePockets {
			t.Fatalf("seed %d: карман вне диапазона: %d", seed, rs.Pocket)
		}
		cf := CoinflipRules{}.Initial(seed).(CoinflipState)
		if cf.Result != CoinHeads && cf.Result != CoinTails {
			t.Fatalf("seed %d: неизвестный исход монеты: %s", seed, cf.Result)
		}
	}
}

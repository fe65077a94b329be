package game

import (
	"errors"
	"testing"

	"telegram_arena/internal/domain"
)

func TestRPSRoundResolution(t *testing.T) {
	rl := RPSRules{}
	st := rl.Initial(0)

	st1, _, err := rl.Apply(st, domain.SideA, RPSMove{Pick: "rock"})
	if err != nil {
		t.Fatalf("первый выбор должен приниматься: %v", err)
	}
	// выбор сделан - ходить может только вторая сторона
	if mask := rl.Turn(st1); mask != domain.TurnB {
		t.Fatalf("после выбора A ходить должна только B, маска %v", mask)
	}

	st2, _, err := rl.Apply(st1, domain.SideB, RPSMove{Pick: "scissors"})
	if err != nil {
		t.Fatalf("ответный выбор должен приниматься: %v", err)
	}

	rs := st2.(RPSState)
	if rs.Score[domain.SideA] != 1 || rs.Score[domain.SideB] != 0 {
		t.Fatalf("камень бьет ножницы, счет должен быть 1:0, получено %v", rs.Score)
	}
	if rs.Rounds != 1 {
		t.Fatalf("сыгран один раунд, получено %d", rs.Rounds)
	}
	if rs.Picks[0] != "" || rs.Picks[1] != "" {
		t.Fatalf("выборы должны очищаться к новому раунду")
	}
	if rs.LastRound == nil || rs.LastRound.Winner == nil || *rs.LastRound.Winner != domain.SideA {
		t.Fatalf("итог раунда должен сохраняться для отображения: %+v", rs.LastRound)
	}
	// обе стороны снова выбирают
	if mask := rl.Turn(st2); mask != domain.TurnBoth {
		t.Fatalf("в новом раунде выбирают обе стороны, маска %v", mask)
	}
}

func TestRPSDrawRoundReplays(t *testing.T) {
	rl := RPSRules{}
	st := rl.Initial(0)

	st, _, _ = rl.Apply(st, domain.SideA, RPSMove{Pick: "paper"})
	st, _, _ = rl.Apply(st, domain.SideB, RPSMove{Pick: "paper"})

	rs := st.(RPSState)
	if rs.Score[0] != 0 || rs.Score[1] != 0 {
		t.Fatalf("ничейный раунд не меняет счет: %v", rs.Score)
	}
	if rs.Rounds != 1 {
		t.Fatalf("ничейный раунд все равно сыгран")
	}
	if rl.Terminal(st) != nil {
		t.Fatalf("после ничейного раунда матч продолжается")
	}
}

func TestRPSFirstToThreeWins(t *testing.T) {
	rl := RPSRules{}
	st := rl.Initial(0)

	// три победы стороны B подряд
	for i := 0; i < RPSWinsNeeded; i++ {
		var err error
		st, _, err = rl.Apply(st, domain.SideA, RPSMove{Pick: "rock"})
		if err != nil {
			t.Fatalf("раунд %d: %v", i, err)
		}
		st, _, err = rl.Apply(st, domain.SideB, RPSMove{Pick: "paper"})
		if err != nil {
			t.Fatalf("раунд %d: %v", i, err)
		}
	}

	res := rl.Terminal(st)
	if res == nil || res.Winner == nil || *res.Winner != domain.SideB {
		t.Fatalf("три победы в раундах выигрывают матч: %+v", res)
	}
	if res.Detail != "first_to_three" {
		t.Fatalf("ожидалась причина first_to_three, получено %s", res.Detail)
	}

	// после завершения ходы не принимаются
	if got := rl.Legal(st, domain.SideA); len(got) != 0 {
		t.Fatalf("в завершенном матче не должно быть ходов")
	}
	if _, _, err := rl.Apply(st, domain.SideA, RPSMove{Pick: "rock"}); err == nil {
		t.Fatalf("ход в завершенном матче должен отклоняться")
	}
}

func TestRPSDoublePickRejected(t *testing.T) {
	rl := RPSRules{}
	st := rl.Initial(0)

	st, _, _ = rl.Apply(st, domain.SideA, RPSMove{Pick: "rock"})
	_, _, err := rl.Apply(st, domain.SideA, RPSMove{Pick: "paper"})

	var ime *domain.IllegalMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("повторный выбор в раунде должен отклоняться: %v", err)
	}
}

func TestRPSInvalidPickRejected(t *testing.T) {
	rl := RPSRules{}
	st := rl.Initial(0)

	if _, _, err := rl.Apply(st, domain.SideA, RPSMove{Pick: "lizard"}); err == nil {
		t.Fatalf("неизвестный выбор должен отклоняться")
	}
}

func TestRPSProjectionHidesOpponentPick(t *testing.T) {
	rl := RPSRules{}
	st, _, _ := rl.Apply(rl.Initial(0), domain.SideA, RPSMove{Pick: "rock"})

	view := rl.Project(st, domain.SideB)
	if view["opponent_committed"] != true {
		t.Fatalf("факт чужого выбора должен быть виден")
	}
	for k := range view {
		if k == "opponent_pick" {
			t.Fatalf("сам чужой выбор раскрываться не должен")
		}
	}
	if view["your_pick"] != "" {
		t.Fatalf("свой выбор еще не сделан")
	}

	own := rl.Project(st, domain.SideA)
	if own["your_pick"] != "rock" {
		t.Fatalf("свой выбор должен быть виден владельцу")
	}
}

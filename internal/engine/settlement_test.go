package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"telegram_arena/internal/domain"
)

// терминальная сессия для проверки расчетов; winner == nil дает ничью
func terminalSession(stake, rakeBps int64, winner *domain.Side) *domain.Session {
	s := &domain.Session{
		ID:        uuid.New(),
		GameType:  domain.GameTypeDice,
		PlayerA:   10,
		PlayerB:   20,
		StakeNano: stake,
		RakeBps:   rakeBps,
		Currency:  domain.CurrencyTON,
		State:     domain.SessionTerminal,
		Outcome:   &domain.Outcome{Reason: domain.ReasonDraw},
	}
	if winner != nil {
		w := *winner
		s.Outcome = &domain.Outcome{Winner: &w, Reason: domain.ReasonNormalWin}
	}
	return s
}

func TestSettlementWinnerPayout(t *testing.T) {
	w := domain.SideA
	s := terminalSession(10*domain.NanoPerTON, 500, &w)
	at := time.Now()

	st, err := ComputeSettlement(s, at)
	if err != nil {
		t.Fatalf("расчет не должен возвращать ошибку: %v", err)
	}
	if st.WinnerID == nil || *st.WinnerID != 10 {
		t.Fatalf("победителем должен быть игрок 10, получено %v", st.WinnerID)
	}
	if st.RakeNano != 500_000_000 {
		t.Fatalf("комиссия с 10 TON при 5%% должна быть 0.5 TON, получено %d", st.RakeNano)
	}
	if st.PayoutNano != 19_500_000_000 {
		t.Fatalf("выплата должна быть 19.5 TON, получено %d", st.PayoutNano)
	}
	if !st.CreatedAt.Equal(at) {
		t.Fatalf("время расчета должно совпадать с переданным")
	}
}

func TestSettlementDrawRefundsStakes(t *testing.T) {
	s := terminalSession(7*domain.NanoPerTON, 500, nil)

	st, err := ComputeSettlement(s, time.Now())
	if err != nil {
		t.Fatalf("расчет не должен возвращать ошибку: %v", err)
	}
	if !st.IsDraw() {
		t.Fatalf("расчет должен быть ничейным")
	}
	if st.RakeNano != 0 {
		t.Fatalf("при ничьей комиссия не удерживается, получено %d", st.RakeNano)
	}
	if st.PayoutNano != 7*domain.NanoPerTON {
		t.Fatalf("каждому должна вернуться ставка целиком, получено %d", st.PayoutNano)
	}
}

func TestSettlementRakeRoundsDown(t *testing.T) {
	w := domain.SideB
	s := terminalSession(3, 500, &w)

	st, err := ComputeSettlement(s, time.Now())
	if err != nil {
		t.Fatalf("расчет не должен возвращать ошибку: %v", err)
	}
	if st.RakeNano != 0 {
		t.Fatalf("комиссия округляется вниз до нанотона, получено %d", st.RakeNano)
	}
	if st.PayoutNano != 6 {
		t.Fatalf("выплата должна быть 6 нанотонов, получено %d", st.PayoutNano)
	}
	if st.WinnerID == nil || *st.WinnerID != 20 {
		t.Fatalf("победителем должен быть игрок 20, получено %v", st.WinnerID)
	}
}

func TestSettlementClampsRakeBps(t *testing.T) {
	w := domain.SideA

	s := terminalSession(domain.NanoPerTON, -100, &w)
	st, err := ComputeSettlement(s, time.Now())
	if err != nil {
		t.Fatalf("расчет не должен возвращать ошибку: %v", err)
	}
	if st.RakeNano != 0 {
		t.Fatalf("отрицательная комиссия прижимается к нулю, получено %d", st.RakeNano)
	}

	s = terminalSession(domain.NanoPerTON, 20_000, &w)
	st, err = ComputeSettlement(s, time.Now())
	if err != nil {
		t.Fatalf("расчет не должен возвращать ошибку: %v", err)
	}
	if st.RakeNano != domain.NanoPerTON {
		t.Fatalf("комиссия не может превышать ставку, получено %d", st.RakeNano)
	}
	if st.PayoutNano != domain.NanoPerTON {
		t.Fatalf("при комиссии 100%% победителю остается его ставка, получено %d", st.PayoutNano)
	}
}

func TestSettlementRequiresOutcome(t *testing.T) {
	s := &domain.Session{
		ID:        uuid.New(),
		StakeNano: domain.NanoPerTON,
		State:     domain.SessionInProgress,
	}

	_, err := ComputeSettlement(s, time.Now())
	var stateErr *domain.InvalidSessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("без исхода расчет должен отклоняться, получено %v", err)
	}
}

func TestSettlementProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		stake := rapid.Int64Range(0, 1_000_000*domain.NanoPerTON).Draw(rt, "stake")
		bps := rapid.Int64Range(0, 10_000).Draw(rt, "bps")
		outcome := rapid.IntRange(0, 2).Draw(rt, "outcome")

		var winner *domain.Side
		switch outcome {
		case 0:
			w := domain.SideA
			winner = &w
		case 1:
			w := domain.SideB
			winner = &w
		}

		st, err := ComputeSettlement(terminalSession(stake, bps, winner), time.Now())
		if err != nil {
			rt.Fatalf("расчет не должен возвращать ошибку: %v", err)
		}
		if st.RakeNano < 0 || st.PayoutNano < 0 {
			rt.Fatalf("суммы расчета не могут быть отрицательными: rake=%d payout=%d", st.RakeNano, st.PayoutNano)
		}

		if winner == nil {
			if st.PayoutNano != stake || st.RakeNano != 0 {
				rt.Fatalf("ничья должна вернуть ставки без комиссии: payout=%d rake=%d", st.PayoutNano, st.RakeNano)
			}
			return
		}

		// банк расходится без остатка: выплата плюс комиссия равны двум ставкам
		if st.PayoutNano+st.RakeNano != 2*stake {
			rt.Fatalf("нарушено сохранение банка: payout=%d rake=%d stake=%d", st.PayoutNano, st.RakeNano, stake)
		}
		if st.RakeNano > stake {
			rt.Fatalf("комиссия не может превышать ставку: rake=%d stake=%d", st.RakeNano, stake)
		}
		if st.PayoutNano < stake {
			rt.Fatalf("победитель не может получить меньше своей ставки: payout=%d stake=%d", st.PayoutNano, stake)
		}
	})
}

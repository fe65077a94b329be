package engine

import (
	"time"

	"telegram_arena/internal/domain"
)

// Верхняя граница комиссии: 10000 базисных пунктов = 100%
const maxRakeBps = 10_000

// ComputeSettlement строит расчет по терминальной сессии. Деньги в
// нанотонах, вся арифметика целочисленная. Комиссия берется со ставки,
// а не с банка: победитель получает 2*stake - rake. При ничьей банк
// возвращается по ставке каждому, комиссия не удерживается.
func ComputeSettlement(s *domain.Session, at time.Time) (*domain.Settlement, error) {
	if s.Outcome == nil {
		return nil, &domain.InvalidSessionStateError{Op: "settle", State: s.State}
	}

	out := &domain.Settlement{
		SessionID: s.ID,
		StakeNano: s.StakeNano,
		Reason:    s.Outcome.Reason,
		CreatedAt: at,
	}

	if s.Outcome.Winner == nil {
		out.PayoutNano = s.StakeNano // каждой стороне
		return out, nil
	}

	winnerID := s.PlayerOn(*s.Outcome.Winner)
	out.WinnerID = &winnerID
	out.RakeNano = rakeAmount(s.StakeNano, s.RakeBps)
	out.PayoutNano = 2*s.StakeNano - out.RakeNano
	return out, nil
}

// комиссия площадки со ставки, с округлением вниз до нанотона
func rakeAmount(stakeNano, rakeBps int64) int64 {
	if stakeNano <= 0 {
		return 0
	}
	if rakeBps < 0 {
		rakeBps = 0
	}
	if rakeBps > maxRakeBps {
		rakeBps = maxRakeBps
	}
	return stakeNano * rakeBps / maxRakeBps
}

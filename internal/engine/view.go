package engine

import (
	"time"

	"github.com/google/uuid"

	"telegram_arena/internal/domain"
)

// View - снимок сессии глазами одного участника. Скрытая информация
// соперника (незафиксированный выбор, нераскрытый бросок) в снимок не
// попадает, поэтому отдавать его клиенту можно как есть.
type View struct {
	SessionID  uuid.UUID              `json:"session_id"`
	GameType   domain.GameType        `json:"game_type"`
	State      domain.SessionState    `json:"state"`
	Players    map[string]int64       `json:"players"`
	StakeNano  int64                  `json:"stake_nano"`
	Currency   domain.Currency        `json:"currency"`
	You        string                 `json:"you"`
	Turn       []string               `json:"turn"`
	MoveCount  int                    `json:"move_count"`
	ClockMs    map[string]int64       `json:"clock_ms,omitempty"`
	Game       map[string]interface{} `json:"game,omitempty"`
	Outcome    *domain.Outcome        `json:"outcome,omitempty"`
	Result     string                 `json:"result,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
}

// View строит снимок сессии для участника; посторонним сессия не отдается
func (m *Manager) View(id uuid.UUID, viewerID int64) (*View, error) {
	ls, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	side, ok := ls.sess.SeatOf(viewerID)
	if !ok {
		return nil, ErrNotParticipant
	}

	v := &View{
		SessionID: ls.sess.ID,
		GameType:  ls.sess.GameType,
		State:     ls.sess.State,
		Players: map[string]int64{
			domain.SideA.Key(): ls.sess.PlayerA,
			domain.SideB.Key(): ls.sess.PlayerB,
		},
		StakeNano:  ls.sess.StakeNano,
		Currency:   ls.sess.Currency,
		You:        side.Key(),
		MoveCount:  ls.sess.MoveCount,
		CreatedAt:  ls.sess.CreatedAt,
		StartedAt:  ls.sess.StartedAt,
		FinishedAt: ls.sess.FinishedAt,
	}
	for _, s := range [2]domain.Side{domain.SideA, domain.SideB} {
		if ls.sess.Turn.Has(s) {
			v.Turn = append(v.Turn, s.Key())
		}
	}
	if ls.clock != nil {
		v.ClockMs = map[string]int64{
			domain.SideA.Key(): ls.clock.Remaining(domain.SideA).Milliseconds(),
			domain.SideB.Key(): ls.clock.Remaining(domain.SideB).Milliseconds(),
		}
	}
	if ls.state != nil {
		v.Game = ls.rules.Project(ls.state, side)
	}
	if ls.sess.Outcome != nil {
		o := *ls.sess.Outcome
		v.Outcome = &o
		v.Result = o.ResultKey()
	}
	return v, nil
}

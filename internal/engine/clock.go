package engine

import (
	"time"

	"telegram_arena/internal/domain"
)

// Бюджет времени на сторону по умолчанию
const DefaultClockBudget = 600 * time.Second

// Clock отсчитывает время двух сторон партии. Часы не заводят собственных
// таймеров: внешний планировщик вызывает Tick с прошедшим интервалом,
// поэтому тесты продвигают время без ожидания. Потокобезопасность
// обеспечивает блокировка сессии, владеющей часами.
type Clock struct {
	remaining [2]time.Duration
	active    domain.TurnMask
	running   bool
	expired   [2]bool
}

func NewClock(budget time.Duration) *Clock {
	if budget <= 0 {
		budget = DefaultClockBudget
	}
	return &Clock{remaining: [2]time.Duration{budget, budget}}
}

// запускает отсчет для сторон из маски
func (c *Clock) Start(active domain.TurnMask) {
	c.active = active
	c.running = true
}

// переключает, чьи часы идут; остаток времени при этом не сбрасывается
func (c *Clock) SetActive(active domain.TurnMask) {
	c.active = active
}

// замораживает оба отсчета
func (c *Clock) Stop() {
	c.running = false
	c.active = domain.TurnNone
}

func (c *Clock) Running() bool { return c.running }

// списывает интервал с активных сторон и возвращает маску сторон, у
// которых время вышло именно на этом шаге; каждая сторона помечается
// не более одного раза
func (c *Clock) Tick(elapsed time.Duration) domain.TurnMask {
	if !c.running || elapsed <= 0 {
		return domain.TurnNone
	}

	flagged := domain.TurnNone
	for _, s := range [2]domain.Side{domain.SideA, domain.SideB} {
		if !c.active.Has(s) || c.expired[s] {
			continue
		}
		c.remaining[s] -= elapsed
		if c.remaining[s] <= 0 {
			c.remaining[s] = 0
			c.expired[s] = true
			flagged |= domain.MaskOf(s)
		}
	}
	return flagged
}

// остаток времени стороны
func (c *Clock) Remaining(side domain.Side) time.Duration {
	return c.remaining[side]
}

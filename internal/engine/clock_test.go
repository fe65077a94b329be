package engine

import (
	"testing"
	"time"

	"telegram_arena/internal/domain"
)

func TestClockTicksActiveSideOnly(t *testing.T) {
	c := NewClock(10 * time.Second)
	c.Start(domain.TurnA)

	if got := c.Tick(3 * time.Second); got != domain.TurnNone {
		t.Fatalf("время не должно было выйти, получено %v", got)
	}
	if got := c.Remaining(domain.SideA); got != 7*time.Second {
		t.Fatalf("у стороны A должно остаться 7s, осталось %v", got)
	}
	if got := c.Remaining(domain.SideB); got != 10*time.Second {
		t.Fatalf("часы стороны B не должны были идти, осталось %v", got)
	}
}

func TestClockSwitchKeepsRemaining(t *testing.T) {
	c := NewClock(10 * time.Second)
	c.Start(domain.TurnA)
	c.Tick(4 * time.Second)

	c.SetActive(domain.TurnB)
	c.Tick(2 * time.Second)

	if got := c.Remaining(domain.SideA); got != 6*time.Second {
		t.Fatalf("остаток стороны A должен сохраняться после переключения, осталось %v", got)
	}
	if got := c.Remaining(domain.SideB); got != 8*time.Second {
		t.Fatalf("у стороны B должно остаться 8s, осталось %v", got)
	}
}

func TestClockFlagsExpiredSide(t *testing.T) {
	c := NewClock(5 * time.Second)
	c.Start(domain.TurnA)

	if got := c.Tick(5 * time.Second); got != domain.TurnA {
		t.Fatalf("должна быть помечена сторона A, получено %v", got)
	}
	if got := c.Remaining(domain.SideA); got != 0 {
		t.Fatalf("остаток просроченной стороны должен быть 0, осталось %v", got)
	}
}

func TestClockFlagsSideOnce(t *testing.T) {
	c := NewClock(time.Second)
	c.Start(domain.TurnA)

	if got := c.Tick(2 * time.Second); got != domain.TurnA {
		t.Fatalf("первая просрочка должна пометить сторону A, получено %v", got)
	}
	if got := c.Tick(time.Second); got != domain.TurnNone {
		t.Fatalf("повторный тик не должен помечать сторону снова, получено %v", got)
	}
}

func TestClockBothExpireSameTick(t *testing.T) {
	c := NewClock(3 * time.Second)
	c.Start(domain.TurnBoth)

	if got := c.Tick(3 * time.Second); got != domain.TurnBoth {
		t.Fatalf("обе стороны должны быть помечены одним тиком, получено %v", got)
	}
}

func TestClockStoppedDoesNotTick(t *testing.T) {
	c := NewClock(5 * time.Second)
	c.Start(domain.TurnA)
	c.Stop()

	if got := c.Tick(10 * time.Second); got != domain.TurnNone {
		t.Fatalf("остановленные часы не должны идти, получено %v", got)
	}
	if got := c.Remaining(domain.SideA); got != 5*time.Second {
		t.Fatalf("остаток не должен меняться после остановки, осталось %v", got)
	}
}

func TestClockIgnoresNonPositiveElapsed(t *testing.T) {
	c := NewClock(5 * time.Second)
	c.Start(domain.TurnA)

	c.Tick(0)
	c.Tick(-time.Second)

	if got := c.Remaining(domain.SideA); got != 5*time.Second {
		t.Fatalf("нулевой и отрицательный интервалы не должны списываться, осталось %v", got)
	}
}

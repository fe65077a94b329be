package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/game"
)

// фиксирующее хранилище для проверки асинхронных записей движка
type recordStore struct {
	mu          sync.Mutex
	sessions    []domain.Session
	settlements []domain.Settlement
}

func (r *recordStore) SaveSession(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, *s)
	return nil
}

func (r *recordStore) SaveSettlement(ctx context.Context, st *domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements = append(r.settlements, *st)
	return nil
}

func (r *recordStore) settlementList() []domain.Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Settlement, len(r.settlements))
	copy(out, r.settlements)
	return out
}

func (r *recordStore) hasSettledSnapshot() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.State == domain.SessionSettled {
			return true
		}
	}
	return false
}

type recordPayer struct {
	mu      sync.Mutex
	payouts []domain.Settlement
}

func (r *recordPayer) Payout(ctx context.Context, s *domain.Session, st *domain.Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, *st)
	return nil
}

func (r *recordPayer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payouts)
}

// накопитель событий движка
type eventLog struct {
	mu  sync.Mutex
	evs []EventKind
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, ev.Kind)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.evs))
	copy(out, l.evs)
	return out
}

// движок с тихим внутренним планировщиком: время в тестах продвигает
// только явный Tick
func newTestManager(t *testing.T, store Store, payer Payer, notify EventFunc) *Manager {
	t.Helper()
	m := NewManager(Config{
		ClockBudget: 10 * time.Second,
		TickEvery:   time.Hour,
		RakeBps:     500,
	}, store, payer, notify)
	m.seed = func() int64 { return 42 }
	return m
}

func startSession(t *testing.T, m *Manager, gt domain.GameType, a, b, stake int64) uuid.UUID {
	t.Helper()
	s, err := m.Create(gt, a, b, stake)
	if err != nil {
		t.Fatalf("не удалось создать сессию: %v", err)
	}
	if err := m.Start(s.ID); err != nil {
		t.Fatalf("не удалось запустить сессию: %v", err)
	}
	return s.ID
}

func mustView(t *testing.T, m *Manager, id uuid.UUID, viewer int64) *View {
	t.Helper()
	v, err := m.View(id, viewer)
	if err != nil {
		t.Fatalf("не удалось получить снимок сессии: %v", err)
	}
	return v
}

// ждет условие: асинхронные записи приходят из фоновых горутин
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("условие не выполнилось за отведенное время")
}

func chessMoveRaw(fr, fc, tr, tc int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"from_row":%d,"from_col":%d,"to_row":%d,"to_col":%d}`, fr, fc, tr, tc))
}

var flipRaw = json.RawMessage(`{"action":"flip"}`)

func TestCreateValidation(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)

	if _, err := m.Create("poker", 1, 2, 0); err == nil {
		t.Fatalf("неизвестный тип игры должен отклоняться")
	}
	if _, err := m.Create(domain.GameTypeDice, 1, 2, -1); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("отрицательная ставка должна отклоняться, получено %v", err)
	}
	if _, err := m.Create(domain.GameTypeDice, 1, 1, 0); !errors.Is(err, ErrInvalidPlayers) {
		t.Fatalf("игра с самим собой должна отклоняться, получено %v", err)
	}
	if _, err := m.Create(domain.GameTypeDice, 0, 2, 0); !errors.Is(err, ErrInvalidPlayers) {
		t.Fatalf("сторона A не может быть автоматом, получено %v", err)
	}
}

func TestStartFirstMover(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, domain.NanoPerTON)

	v := mustView(t, m, id, 1)
	if v.State != domain.SessionInProgress {
		t.Fatalf("после старта сессия должна идти, состояние %s", v.State)
	}
	if v.You != "player1" {
		t.Fatalf("игрок 1 должен видеть себя стороной player1, получено %s", v.You)
	}
	if !reflect.DeepEqual(v.Turn, []string{"player1"}) {
		t.Fatalf("первой ходит сторона A, очередь %v", v.Turn)
	}
	if v.ClockMs["player1"] != 10_000 || v.ClockMs["player2"] != 10_000 {
		t.Fatalf("обе стороны начинают с полным бюджетом времени, часы %v", v.ClockMs)
	}
}

func TestStartTwiceRejected(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	err := m.Start(id)
	var stateErr *domain.InvalidSessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("повторный старт должен отклоняться, получено %v", err)
	}
}

func TestSubmitMoveOutOfTurn(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	err := m.SubmitMove(id, 2, chessMoveRaw(1, 0, 2, 0))
	var moveErr *domain.IllegalMoveError
	if !errors.As(err, &moveErr) {
		t.Fatalf("ход вне очереди должен отклоняться, получено %v", err)
	}
	if v := mustView(t, m, id, 1); v.MoveCount != 0 {
		t.Fatalf("отклоненный ход не должен менять счетчик, ходов %d", v.MoveCount)
	}
}

func TestSubmitMoveByStranger(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	if err := m.SubmitMove(id, 99, chessMoveRaw(6, 0, 5, 0)); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("посторонний не может ходить, получено %v", err)
	}
}

func TestSubmitMoveAdvancesTurn(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	if err := m.SubmitMove(id, 1, chessMoveRaw(6, 0, 5, 0)); err != nil {
		t.Fatalf("допустимый ход пешкой отклонен: %v", err)
	}

	v := mustView(t, m, id, 1)
	if v.MoveCount != 1 {
		t.Fatalf("счетчик ходов должен стать 1, получено %d", v.MoveCount)
	}
	if !reflect.DeepEqual(v.Turn, []string{"player2"}) {
		t.Fatalf("очередь должна перейти стороне B, получено %v", v.Turn)
	}
}

func TestIllegalMoveKeepsState(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	// ладья не перепрыгивает свою пешку
	err := m.SubmitMove(id, 1, chessMoveRaw(7, 0, 5, 0))
	var moveErr *domain.IllegalMoveError
	if !errors.As(err, &moveErr) {
		t.Fatalf("недопустимый ход должен отклоняться, получено %v", err)
	}

	v := mustView(t, m, id, 1)
	if v.MoveCount != 0 {
		t.Fatalf("счетчик ходов не должен меняться, получено %d", v.MoveCount)
	}
	if !reflect.DeepEqual(v.Turn, []string{"player1"}) {
		t.Fatalf("очередь должна остаться за стороной A, получено %v", v.Turn)
	}

	if err := m.SubmitMove(id, 1, chessMoveRaw(6, 0, 5, 0)); err != nil {
		t.Fatalf("после отклоненного хода партия должна продолжаться: %v", err)
	}
}

func TestMoveAfterTerminalRejected(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, 0)

	if err := m.SubmitMove(id, 1, flipRaw); err != nil {
		t.Fatalf("бросок стороны A отклонен: %v", err)
	}
	if err := m.SubmitMove(id, 2, flipRaw); err != nil {
		t.Fatalf("бросок стороны B отклонен: %v", err)
	}

	err := m.SubmitMove(id, 1, flipRaw)
	var stateErr *domain.InvalidSessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("ход в завершенной партии должен отклоняться, получено %v", err)
	}
}

func TestCoinflipLifecycleAndSettle(t *testing.T) {
	store := &recordStore{}
	payer := &recordPayer{}
	m := newTestManager(t, store, payer, nil)
	stake := 10 * domain.NanoPerTON
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, stake)

	if err := m.SubmitMove(id, 1, flipRaw); err != nil {
		t.Fatalf("бросок стороны A отклонен: %v", err)
	}
	if err := m.SubmitMove(id, 2, flipRaw); err != nil {
		t.Fatalf("бросок стороны B отклонен: %v", err)
	}

	v := mustView(t, m, id, 1)
	if v.State != domain.SessionTerminal {
		t.Fatalf("после обоих бросков партия должна завершиться, состояние %s", v.State)
	}
	if v.Outcome == nil || v.Outcome.Winner == nil {
		t.Fatalf("монета всегда выбирает победителя, исход %+v", v.Outcome)
	}
	if v.Outcome.Reason != domain.ReasonNormalWin {
		t.Fatalf("причина должна быть normal_win, получено %s", v.Outcome.Reason)
	}

	st, err := m.Settle(id)
	if err != nil {
		t.Fatalf("расчет завершенной сессии отклонен: %v", err)
	}
	if st.PayoutNano != 19_500_000_000 {
		t.Fatalf("выплата с банка 20 TON при 5%% должна быть 19.5 TON, получено %d", st.PayoutNano)
	}
	if st.RakeNano != 500_000_000 {
		t.Fatalf("комиссия должна быть 0.5 TON, получено %d", st.RakeNano)
	}
	if st.WinnerID == nil {
		t.Fatalf("в расчете должен быть победитель")
	}

	if v := mustView(t, m, id, 1); v.State != domain.SessionSettled {
		t.Fatalf("после расчета сессия должна быть settled, состояние %s", v.State)
	}
	waitFor(t, func() bool { return payer.count() == 1 })
	waitFor(t, store.hasSettledSnapshot)
}

func TestSettleIdempotent(t *testing.T) {
	payer := &recordPayer{}
	m := newTestManager(t, nil, payer, nil)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, domain.NanoPerTON)

	m.SubmitMove(id, 1, flipRaw)
	m.SubmitMove(id, 2, flipRaw)

	if _, err := m.Settle(id); err != nil {
		t.Fatalf("первый расчет отклонен: %v", err)
	}

	_, err := m.Settle(id)
	var dup *domain.AlreadySettledError
	if !errors.As(err, &dup) {
		t.Fatalf("повторный расчет должен возвращать AlreadySettledError, получено %v", err)
	}
	waitFor(t, func() bool { return payer.count() == 1 })
}

// English note: two goroutines race to settle the same session; the
// per-session lock must let exactly one through.
func TestSettleConcurrent(t *testing.T) {
	payer := &recordPayer{}
	m := newTestManager(t, nil, payer, nil)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, domain.NanoPerTON)

	m.SubmitMove(id, 1, flipRaw)
	m.SubmitMove(id, 2, flipRaw)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Settle(id)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	okCount, dupCount := 0, 0
	for err := range results {
		if err == nil {
			okCount++
			continue
		}
		var dup *domain.AlreadySettledError
		if errors.As(err, &dup) {
			dupCount++
		} else {
			t.Fatalf("неожиданная ошибка расчета: %v", err)
		}
	}
	if okCount != 1 || dupCount != 1 {
		t.Fatalf("ровно один расчет должен пройти: успехов %d, повторов %d", okCount, dupCount)
	}
	waitFor(t, func() bool { return payer.count() == 1 })
}

func TestSettleBeforeTerminalRejected(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	_, err := m.Settle(id)
	var stateErr *domain.InvalidSessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("расчет идущей партии должен отклоняться, получено %v", err)
	}
}

func TestResignAwardsOpponent(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, domain.NanoPerTON)

	if err := m.Resign(id, 1); err != nil {
		t.Fatalf("сдача отклонена: %v", err)
	}

	v := mustView(t, m, id, 1)
	if v.State != domain.SessionTerminal {
		t.Fatalf("после сдачи партия должна завершиться, состояние %s", v.State)
	}
	if v.Result != "player2_win" {
		t.Fatalf("победа должна уйти сопернику, результат %s", v.Result)
	}
	if v.Outcome.Reason != domain.ReasonResignation {
		t.Fatalf("причина должна быть resignation, получено %s", v.Outcome.Reason)
	}

	st, err := m.Settle(id)
	if err != nil {
		t.Fatalf("расчет после сдачи отклонен: %v", err)
	}
	if st.WinnerID == nil || *st.WinnerID != 2 {
		t.Fatalf("выплата должна уйти игроку 2, получено %v", st.WinnerID)
	}
}

func TestTimeoutForcesTerminal(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	if err := m.Tick(id, 10*time.Second); err != nil {
		t.Fatalf("тик отклонен: %v", err)
	}

	v := mustView(t, m, id, 1)
	if v.State != domain.SessionTerminal {
		t.Fatalf("просрочка должна завершить партию, состояние %s", v.State)
	}
	if v.Result != "player2_win" {
		t.Fatalf("просрочившая сторона A проигрывает, результат %s", v.Result)
	}
	if v.Outcome.Reason != domain.ReasonTimeout {
		t.Fatalf("причина должна быть timeout, получено %s", v.Outcome.Reason)
	}
}

func TestTimeoutBothSidesDraw(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeRPS, 1, 2, 3*domain.NanoPerTON)

	if err := m.Tick(id, 10*time.Second); err != nil {
		t.Fatalf("тик отклонен: %v", err)
	}

	v := mustView(t, m, id, 2)
	if v.Result != "draw" {
		t.Fatalf("одновременная просрочка обеих сторон дает ничью, результат %s", v.Result)
	}

	st, err := m.Settle(id)
	if err != nil {
		t.Fatalf("расчет ничьей отклонен: %v", err)
	}
	if st.PayoutNano != 3*domain.NanoPerTON || st.RakeNano != 0 {
		t.Fatalf("ничья возвращает ставки без комиссии: payout=%d rake=%d", st.PayoutNano, st.RakeNano)
	}
}

func TestTickAfterTerminalHarmless(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, 0)

	m.SubmitMove(id, 1, flipRaw)
	m.SubmitMove(id, 2, flipRaw)
	before := mustView(t, m, id, 1)

	if err := m.Tick(id, time.Hour); err != nil {
		t.Fatalf("опоздавший тик не должен возвращать ошибку: %v", err)
	}

	after := mustView(t, m, id, 1)
	if after.State != before.State || after.Result != before.Result {
		t.Fatalf("опоздавший тик не должен менять исход: было %s/%s, стало %s/%s",
			before.State, before.Result, after.State, after.Result)
	}
}

func TestOnTimeoutOperation(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, 2, 0)

	if err := m.OnTimeout(id); err != nil {
		t.Fatalf("принудительная просрочка отклонена: %v", err)
	}
	if v := mustView(t, m, id, 1); v.Result != "player2_win" {
		t.Fatalf("просрочка активной стороны A отдает победу B, результат %s", v.Result)
	}

	err := m.OnTimeout(id)
	var stateErr *domain.InvalidSessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("просрочка завершенной партии должна отклоняться, получено %v", err)
	}
}

func TestBotRespondsAfterHumanMove(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeChess, 1, domain.BotID, domain.NanoPerTON)

	if err := m.SubmitMove(id, 1, chessMoveRaw(6, 4, 5, 4)); err != nil {
		t.Fatalf("ход игрока отклонен: %v", err)
	}

	v := mustView(t, m, id, 1)
	if v.MoveCount != 2 {
		t.Fatalf("автомат должен ответить сразу, ходов %d", v.MoveCount)
	}
	if !reflect.DeepEqual(v.Turn, []string{"player1"}) {
		t.Fatalf("после ответа автомата очередь возвращается игроку, получено %v", v.Turn)
	}
}

func TestBotCommitsOnStart(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, domain.BotID, 0)

	v := mustView(t, m, id, 1)
	if v.MoveCount != 1 {
		t.Fatalf("автомат должен подтвердить бросок на старте, ходов %d", v.MoveCount)
	}
	if !reflect.DeepEqual(v.Turn, []string{"player1"}) {
		t.Fatalf("ход должен остаться только за игроком, получено %v", v.Turn)
	}

	if err := m.SubmitMove(id, 1, flipRaw); err != nil {
		t.Fatalf("бросок игрока отклонен: %v", err)
	}
	if v := mustView(t, m, id, 1); v.State != domain.SessionTerminal {
		t.Fatalf("после броска игрока партия должна завершиться, состояние %s", v.State)
	}
}

func TestBotPlaysNextRPSRound(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeRPS, 1, domain.BotID, 0)

	if v := mustView(t, m, id, 1); v.MoveCount != 1 {
		t.Fatalf("автомат должен выбрать жест на старте, ходов %d", v.MoveCount)
	}

	if err := m.SubmitMove(id, 1, json.RawMessage(`{"pick":"rock"}`)); err != nil {
		t.Fatalf("выбор игрока отклонен: %v", err)
	}

	// раунд разрешился, автомат уже зафиксировал жест нового раунда
	v := mustView(t, m, id, 1)
	if v.State != domain.SessionInProgress {
		t.Fatalf("после первого раунда партия должна продолжаться, состояние %s", v.State)
	}
	if v.MoveCount != 3 {
		t.Fatalf("ожидались ходы: автомат, игрок, автомат; получено %d", v.MoveCount)
	}
	if !reflect.DeepEqual(v.Turn, []string{"player1"}) {
		t.Fatalf("очередь должна быть за игроком, получено %v", v.Turn)
	}
}

func TestAbandonGivesDraw(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	s, err := m.Create(domain.GameTypeDice, 1, 2, 5*domain.NanoPerTON)
	if err != nil {
		t.Fatalf("не удалось создать сессию: %v", err)
	}

	if err := m.Abandon(s.ID); err != nil {
		t.Fatalf("закрытие брошенной сессии отклонено: %v", err)
	}

	st, err := m.Settle(s.ID)
	if err != nil {
		t.Fatalf("расчет брошенной сессии отклонен: %v", err)
	}
	if !st.IsDraw() {
		t.Fatalf("брошенная сессия закрывается ничьей")
	}
	if st.PayoutNano != 5*domain.NanoPerTON {
		t.Fatalf("участникам должна вернуться ставка, получено %d", st.PayoutNano)
	}
	if st.Reason != domain.ReasonTimeout {
		t.Fatalf("причина должна быть timeout, получено %s", st.Reason)
	}
}

func TestEventsSequence(t *testing.T) {
	log := &eventLog{}
	m := newTestManager(t, nil, nil, log.add)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, 0)

	m.SubmitMove(id, 1, flipRaw)
	m.SubmitMove(id, 2, flipRaw)
	if _, err := m.Settle(id); err != nil {
		t.Fatalf("расчет отклонен: %v", err)
	}

	want := []EventKind{EventCreated, EventStarted, EventMoved, EventMoved, EventTerminal, EventSettled}
	if got := log.kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("последовательность событий %v, ожидалась %v", got, want)
	}
}

func TestViewStrangerRejected(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeRPS, 1, 2, 0)

	if _, err := m.View(id, 99); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("посторонний не должен видеть сессию, получено %v", err)
	}
}

func TestReleaseLifecycle(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, 0)

	err := m.Release(id)
	var stateErr *domain.InvalidSessionStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("идущую сессию нельзя выгружать, получено %v", err)
	}

	m.SubmitMove(id, 1, flipRaw)
	m.SubmitMove(id, 2, flipRaw)
	if _, err := m.Settle(id); err != nil {
		t.Fatalf("расчет отклонен: %v", err)
	}

	if err := m.Release(id); err != nil {
		t.Fatalf("рассчитанную сессию нельзя было выгрузить: %v", err)
	}
	if _, err := m.View(id, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("после выгрузки сессия не должна находиться, получено %v", err)
	}
}

func TestStoreReceivesSettlement(t *testing.T) {
	store := &recordStore{}
	m := newTestManager(t, store, nil, nil)
	id := startSession(t, m, domain.GameTypeCoinflip, 1, 2, domain.NanoPerTON)

	m.SubmitMove(id, 1, flipRaw)
	m.SubmitMove(id, 2, flipRaw)
	if _, err := m.Settle(id); err != nil {
		t.Fatalf("расчет отклонен: %v", err)
	}

	waitFor(t, func() bool { return len(store.settlementList()) == 1 })
	if got := store.settlementList()[0].SessionID; got != id {
		t.Fatalf("расчет должен ссылаться на сессию %s, получено %s", id, got)
	}
}

func TestPickBotMoveUniformChoice(t *testing.T) {
	rules, err := game.ForType(domain.GameTypeChess)
	if err != nil {
		t.Fatalf("не удалось создать правила: %v", err)
	}
	st := rules.Initial(1)
	moves := rules.Legal(st, domain.SideA)

	mv := pickBotMove(rules, st, domain.SideA, func(n int) int {
		if n != len(moves) {
			t.Fatalf("выбор должен идти по всем %d ходам, передано %d", len(moves), n)
		}
		return 7
	})
	if !reflect.DeepEqual(mv, moves[7]) {
		t.Fatalf("автомат должен вернуть выбранный ход")
	}
}

func TestPickBotMoveEmptyLegal(t *testing.T) {
	rules, err := game.ForType(domain.GameTypeCoinflip)
	if err != nil {
		t.Fatalf("не удалось создать правила: %v", err)
	}
	st := rules.Initial(1)
	next, _, err := rules.Apply(st, domain.SideB, game.CoinflipMove{Action: "flip"})
	if err != nil {
		t.Fatalf("бросок отклонен: %v", err)
	}

	if mv := pickBotMove(rules, next, domain.SideB, nil); mv != nil {
		t.Fatalf("без допустимых ходов автомат должен вернуть nil, получено %v", mv)
	}
}

func TestSessionsListing(t *testing.T) {
	m := newTestManager(t, nil, nil, nil)
	a := startSession(t, m, domain.GameTypeChess, 1, 2, 0)
	if _, err := m.Create(domain.GameTypeDice, 3, 4, 0); err != nil {
		t.Fatalf("не удалось создать сессию: %v", err)
	}

	infos := m.Sessions()
	if len(infos) != 2 {
		t.Fatalf("в памяти должно быть 2 сессии, получено %d", len(infos))
	}
	var found bool
	for _, info := range infos {
		if info.ID == a {
			found = true
			if info.State != domain.SessionInProgress {
				t.Fatalf("запущенная сессия должна быть in_progress, получено %s", info.State)
			}
		}
	}
	if !found {
		t.Fatalf("запущенная сессия не попала в список")
	}
}

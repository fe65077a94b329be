package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/game"
	"telegram_arena/internal/logger"
)

var (
	ErrSessionNotFound = errors.New("сессия не найдена")
	ErrNotParticipant  = errors.New("игрок не участвует в сессии")
	ErrInvalidStake    = errors.New("недопустимый размер ставки")
	ErrInvalidPlayers  = errors.New("недопустимая пара участников")
)

const persistTimeout = 5 * time.Second

// Вид события жизненного цикла сессии
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventStarted  EventKind = "started"
	EventMoved    EventKind = "moved"
	EventTimeout  EventKind = "timeout"
	EventTerminal EventKind = "terminal"
	EventSettled  EventKind = "settled"
)

type Event struct {
	SessionID uuid.UUID
	Kind      EventKind
}

// EventFunc получает события после фиксации перехода. Вызов идет вне
// блокировки сессии, поэтому обратный вызов в движок безопасен.
type EventFunc func(ev Event)

// Store асинхронно получает снимки сессий и записи расчетов.
// Запись расчета обязана быть идемпотентной по id сессии.
type Store interface {
	SaveSession(ctx context.Context, s *domain.Session) error
	SaveSettlement(ctx context.Context, st *domain.Settlement) error
}

// Payer зачисляет выплаты по готовому расчету. Движок вызывает его не
// более одного раза на сессию; неуспех выплаты сессию не переоткрывает.
type Payer interface {
	Payout(ctx context.Context, s *domain.Session, st *domain.Settlement) error
}

// Config задает общие параметры движка сессий
type Config struct {
	ClockBudget time.Duration // бюджет времени на сторону
	TickEvery   time.Duration // шаг внутреннего планировщика часов
	RakeBps     int64         // комиссия площадки в базисных пунктах
}

func (c Config) withDefaults() Config {
	if c.ClockBudget <= 0 {
		c.ClockBudget = DefaultClockBudget
	}
	if c.TickEvery <= 0 {
		c.TickEvery = time.Second
	}
	if c.RakeBps < 0 {
		c.RakeBps = 0
	}
	if c.RakeBps > maxRakeBps {
		c.RakeBps = maxRakeBps
	}
	return c
}

// живая сессия; все поля защищены mu
type liveSession struct {
	mu       sync.Mutex
	sess     domain.Session
	rules    game.Rules
	state    game.State
	clock    *Clock
	stopTick chan struct{}
	pending  []Event
}

// копия сессии с сериализованным состоянием партии; вызывать под блокировкой
func (ls *liveSession) snapshotLocked() domain.Session {
	snap := ls.sess
	if ls.state != nil {
		if b, err := json.Marshal(ls.state); err == nil {
			snap.GameState = b
		} else {
			logger.Error("не удалось сериализовать состояние партии", "session_id", snap.ID, "error", err)
		}
	}
	if ls.sess.Outcome != nil {
		o := *ls.sess.Outcome
		snap.Outcome = &o
	}
	return snap
}

// Manager держит активные сессии в памяти и проводит их через жизненный
// цикл pending -> in_progress -> terminal -> settled. Операции над одной
// сессией сериализуются ее блокировкой, общая карта закрыта отдельной.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*liveSession

	cfg    Config
	store  Store
	payer  Payer
	notify EventFunc

	now  func() time.Time
	seed func() int64
	intn func(int) int
}

func NewManager(cfg Config, store Store, payer Payer, notify EventFunc) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*liveSession),
		cfg:      cfg.withDefaults(),
		store:    store,
		payer:    payer,
		notify:   notify,
		now:      time.Now,
		seed:     game.SecureSeed,
	}
}

func (m *Manager) lookup(id uuid.UUID) (*liveSession, error) {
	m.mu.RLock()
	ls, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

// выполняет операцию под блокировкой сессии и рассылает накопленные
// события уже после ее снятия
func (m *Manager) run(id uuid.UUID, fn func(*liveSession) error) error {
	ls, err := m.lookup(id)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	err = fn(ls)
	evs := ls.pending
	ls.pending = nil
	ls.mu.Unlock()
	m.emit(evs)
	return err
}

func (m *Manager) emit(evs []Event) {
	if m.notify == nil {
		return
	}
	for _, ev := range evs {
		m.notify(ev)
	}
}

// снимок сессии уходит в хранилище в фоне; движок записи не ждет
func (m *Manager) persistAsync(snap domain.Session) {
	if m.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.store.SaveSession(ctx, &snap); err != nil {
			logger.Error("не удалось сохранить снимок сессии", "session_id", snap.ID, "error", err)
		}
	}()
}

// Create регистрирует сессию в состоянии pending. Ставки участников
// уже должны быть удержаны вызывающей стороной.
func (m *Manager) Create(gameType domain.GameType, playerA, playerB, stakeNano int64) (*domain.Session, error) {
	rules, err := game.ForType(gameType)
	if err != nil {
		return nil, err
	}
	if stakeNano < 0 {
		return nil, ErrInvalidStake
	}
	if playerA <= 0 || playerB < 0 || playerA == playerB {
		return nil, ErrInvalidPlayers
	}

	ls := &liveSession{
		sess: domain.Session{
			ID:        uuid.New(),
			GameType:  gameType,
			PlayerA:   playerA,
			PlayerB:   playerB,
			StakeNano: stakeNano,
			RakeBps:   m.cfg.RakeBps,
			Currency:  domain.CurrencyTON,
			State:     domain.SessionPending,
			CreatedAt: m.now(),
		},
		rules: rules,
	}

	m.mu.Lock()
	m.sessions[ls.sess.ID] = ls
	m.mu.Unlock()

	snap := ls.sess
	m.persistAsync(snap)
	m.emit([]Event{{SessionID: snap.ID, Kind: EventCreated}})
	return &snap, nil
}

// Start переводит сессию из pending в in_progress: создает начальное
// состояние партии, запускает часы и внутренний планировщик тиков.
// Первой ходит сторона A либо, в одновременных играх, обе сразу.
func (m *Manager) Start(id uuid.UUID) error {
	return m.run(id, func(ls *liveSession) error {
		if ls.sess.State != domain.SessionPending {
			return &domain.InvalidSessionStateError{Op: "start", State: ls.sess.State}
		}

		ls.state = ls.rules.Initial(m.seed())
		now := m.now()
		ls.sess.State = domain.SessionInProgress
		ls.sess.StartedAt = &now
		ls.sess.Turn = ls.rules.Turn(ls.state)

		ls.clock = NewClock(m.cfg.ClockBudget)
		ls.clock.Start(ls.sess.Turn)
		ls.stopTick = make(chan struct{})
		go m.tickLoop(ls)

		ls.pending = append(ls.pending, Event{SessionID: ls.sess.ID, Kind: EventStarted})
		m.autoMoveLocked(ls)
		m.persistAsync(ls.snapshotLocked())
		return nil
	})
}

// SubmitMove применяет ход игрока. Ход вне очереди или вне множества
// допустимых отклоняется с IllegalMoveError, состояние не меняется.
func (m *Manager) SubmitMove(id uuid.UUID, playerID int64, raw json.RawMessage) error {
	return m.run(id, func(ls *liveSession) error {
		if ls.sess.State != domain.SessionInProgress {
			return &domain.InvalidSessionStateError{Op: "submit_move", State: ls.sess.State}
		}
		side, ok := ls.sess.SeatOf(playerID)
		if !ok {
			return ErrNotParticipant
		}
		if !ls.sess.Turn.Has(side) {
			return &domain.IllegalMoveError{Reason: "сейчас не ваша очередь"}
		}
		mv, err := ls.rules.DecodeMove(raw)
		if err != nil {
			return err
		}
		if err := m.applyLocked(ls, side, mv); err != nil {
			return err
		}
		if ls.sess.State == domain.SessionInProgress {
			m.autoMoveLocked(ls)
		}
		m.persistAsync(ls.snapshotLocked())
		return nil
	})
}

// проводит ход через правила, обновляет очередь, часы и счетчик ходов;
// терминальную позицию сразу фиксирует
func (m *Manager) applyLocked(ls *liveSession, side domain.Side, mv game.Move) error {
	next, _, err := ls.rules.Apply(ls.state, side, mv)
	if err != nil {
		return err
	}
	ls.state = next
	ls.sess.MoveCount++
	ls.pending = append(ls.pending, Event{SessionID: ls.sess.ID, Kind: EventMoved})

	if res := ls.rules.Terminal(next); res != nil {
		m.finishLocked(ls, outcomeFrom(res))
		return nil
	}
	ls.sess.Turn = ls.rules.Turn(next)
	ls.clock.SetActive(ls.sess.Turn)
	return nil
}

// автомат ходит за сторону B, пока она присутствует в маске очереди;
// в партиях двух людей не вызывается
func (m *Manager) autoMoveLocked(ls *liveSession) {
	if !ls.sess.IsBotGame() {
		return
	}
	for ls.sess.State == domain.SessionInProgress && ls.sess.Turn.Has(domain.SideB) {
		mv := pickBotMove(ls.rules, ls.state, domain.SideB, m.intn)
		if mv == nil {
			return
		}
		if err := m.applyLocked(ls, domain.SideB, mv); err != nil {
			logger.Error("ход автомата отклонен правилами", "session_id", ls.sess.ID, "error", err)
			return
		}
	}
}

// Resign завершает партию добровольной сдачей участника
func (m *Manager) Resign(id uuid.UUID, playerID int64) error {
	return m.run(id, func(ls *liveSession) error {
		if ls.sess.State != domain.SessionInProgress {
			return &domain.InvalidSessionStateError{Op: "resign", State: ls.sess.State}
		}
		side, ok := ls.sess.SeatOf(playerID)
		if !ok {
			return ErrNotParticipant
		}
		w := side.Opponent()
		m.finishLocked(ls, &domain.Outcome{
			Winner: &w,
			Reason: domain.ReasonResignation,
			Detail: "resigned_" + side.Key(),
		})
		return nil
	})
}

// OnTimeout принудительно завершает партию по времени для сторон из
// текущей маски очереди. Внутренние часы делают этот переход сами,
// внешний вызов оставлен планировщику вне движка.
func (m *Manager) OnTimeout(id uuid.UUID) error {
	return m.run(id, func(ls *liveSession) error {
		if ls.sess.State != domain.SessionInProgress {
			return &domain.InvalidSessionStateError{Op: "on_timeout", State: ls.sess.State}
		}
		flagged := ls.sess.Turn
		if flagged == domain.TurnNone {
			flagged = domain.TurnBoth
		}
		m.timeoutLocked(ls, flagged)
		return nil
	})
}

// Abandon закрывает брошенную сессию ничьей; уборщик вызывает его для
// сессий без активности дольше допустимого
func (m *Manager) Abandon(id uuid.UUID) error {
	return m.run(id, func(ls *liveSession) error {
		switch ls.sess.State {
		case domain.SessionPending, domain.SessionInProgress:
		default:
			return &domain.InvalidSessionStateError{Op: "abandon", State: ls.sess.State}
		}
		m.finishLocked(ls, &domain.Outcome{Reason: domain.ReasonTimeout, Detail: "abandoned"})
		return nil
	})
}

// Settle строит расчет терминальной сессии и отдает его хранилищу и
// плательщику. Повторный вызов получает AlreadySettledError: единожды
// рассчитанная сессия не пересчитывается.
func (m *Manager) Settle(id uuid.UUID) (*domain.Settlement, error) {
	var out *domain.Settlement
	err := m.run(id, func(ls *liveSession) error {
		switch ls.sess.State {
		case domain.SessionSettled:
			return &domain.AlreadySettledError{SessionID: ls.sess.ID}
		case domain.SessionTerminal:
		default:
			return &domain.InvalidSessionStateError{Op: "settle", State: ls.sess.State}
		}

		st, err := ComputeSettlement(&ls.sess, m.now())
		if err != nil {
			return err
		}
		ls.sess.State = domain.SessionSettled
		out = st

		m.settleAsync(ls.snapshotLocked(), st)
		ls.pending = append(ls.pending, Event{SessionID: ls.sess.ID, Kind: EventSettled})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// запись расчета и выплата уходят в фон; порядок строгий: сначала
// снимок сессии, затем фиксация расчета, выплата только после нее
func (m *Manager) settleAsync(snap domain.Session, st *domain.Settlement) {
	stc := *st
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if m.store != nil {
			if err := m.store.SaveSession(ctx, &snap); err != nil {
				logger.Error("не удалось сохранить снимок сессии", "session_id", snap.ID, "error", err)
			}
			if err := m.store.SaveSettlement(ctx, &stc); err != nil {
				logger.Error("не удалось записать расчет", "session_id", snap.ID, "error", err)
				return
			}
		}
		if m.payer != nil {
			if err := m.payer.Payout(ctx, &snap, &stc); err != nil {
				logger.Error("не удалось провести выплату", "session_id", snap.ID, "error", err)
			}
		}
	}()
}

// внутренний планировщик: продвигает часы, пока сессия идет
func (m *Manager) tickLoop(ls *liveSession) {
	t := time.NewTicker(m.cfg.TickEvery)
	defer t.Stop()
	for {
		select {
		case <-ls.stopTick:
			return
		case <-t.C:
			m.advance(ls, m.cfg.TickEvery)
		}
	}
}

// Tick продвигает часы сессии на заданный интервал. Продакшен живет на
// внутреннем планировщике, внешний вызов нужен управляемому прогону
// времени.
func (m *Manager) Tick(id uuid.UUID, elapsed time.Duration) error {
	ls, err := m.lookup(id)
	if err != nil {
		return err
	}
	m.advance(ls, elapsed)
	return nil
}

// списывает интервал с часов и при истечении времени завершает партию.
// Опоздавший тик после завершения безвреден: состояние уже не
// in_progress, и до часов дело не доходит.
func (m *Manager) advance(ls *liveSession, elapsed time.Duration) {
	ls.mu.Lock()
	if ls.sess.State == domain.SessionInProgress {
		if flagged := ls.clock.Tick(elapsed); flagged != domain.TurnNone {
			m.timeoutLocked(ls, flagged)
		}
	}
	evs := ls.pending
	ls.pending = nil
	ls.mu.Unlock()
	m.emit(evs)
}

// просрочка одной стороны отдает победу сопернику, одновременная
// просрочка обеих дает ничью
func (m *Manager) timeoutLocked(ls *liveSession, flagged domain.TurnMask) {
	out := &domain.Outcome{Reason: domain.ReasonTimeout, Detail: "clock_expired"}
	if flagged == domain.TurnBoth {
		out.Detail = "clock_both_expired"
	} else {
		loser := domain.SideA
		if flagged.Has(domain.SideB) {
			loser = domain.SideB
		}
		w := loser.Opponent()
		out.Winner = &w
	}
	ls.pending = append(ls.pending, Event{SessionID: ls.sess.ID, Kind: EventTimeout})
	m.finishLocked(ls, out)
}

// фиксирует терминальное состояние, гасит часы и планировщик
func (m *Manager) finishLocked(ls *liveSession, out *domain.Outcome) {
	now := m.now()
	ls.sess.State = domain.SessionTerminal
	ls.sess.Outcome = out
	ls.sess.FinishedAt = &now
	ls.sess.Turn = domain.TurnNone
	if ls.clock != nil {
		ls.clock.Stop()
	}
	if ls.stopTick != nil {
		close(ls.stopTick)
		ls.stopTick = nil
	}
	ls.pending = append(ls.pending, Event{SessionID: ls.sess.ID, Kind: EventTerminal})
	m.persistAsync(ls.snapshotLocked())
}

// переводит результат движка правил в исход сессии
func outcomeFrom(res *game.Result) *domain.Outcome {
	out := &domain.Outcome{Detail: res.Detail, Reason: domain.ReasonNormalWin}
	if res.Winner == nil {
		out.Reason = domain.ReasonDraw
		return out
	}
	w := *res.Winner
	out.Winner = &w
	return out
}

// Release убирает завершенную сессию из памяти; идущую убрать нельзя
func (m *Manager) Release(id uuid.UUID) error {
	ls, err := m.lookup(id)
	if err != nil {
		return err
	}
	ls.mu.Lock()
	st := ls.sess.State
	ls.mu.Unlock()
	if st == domain.SessionPending || st == domain.SessionInProgress {
		return &domain.InvalidSessionStateError{Op: "release", State: st}
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Краткие сведения о живой сессии
type SessionInfo struct {
	ID         uuid.UUID
	GameType   domain.GameType
	State      domain.SessionState
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	MoveCount  int
}

// Sessions возвращает сведения обо всех сессиях в памяти; уборщик
// находит по ним брошенные и нерассчитанные партии
func (m *Manager) Sessions() []SessionInfo {
	m.mu.RLock()
	all := make([]*liveSession, 0, len(m.sessions))
	for _, ls := range m.sessions {
		all = append(all, ls)
	}
	m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(all))
	for _, ls := range all {
		ls.mu.Lock()
		out = append(out, SessionInfo{
			ID:         ls.sess.ID,
			GameType:   ls.sess.GameType,
			State:      ls.sess.State,
			CreatedAt:  ls.sess.CreatedAt,
			StartedAt:  ls.sess.StartedAt,
			FinishedAt: ls.sess.FinishedAt,
			MoveCount:  ls.sess.MoveCount,
		})
		ls.mu.Unlock()
	}
	return out
}

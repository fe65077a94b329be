package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/engine"
	"telegram_arena/internal/metrics"
	"telegram_arena/internal/repository"
	"telegram_arena/internal/service"
)

// уникально идентифицирует очередь матчмейкинга: игроки сопоставляются
// по типу игры и сумме ставки
type WaitingKey struct {
	GameType  domain.GameType
	StakeNano int64
}

func (k WaitingKey) String() string {
	return fmt.Sprintf("%s_%d", k.GameType, k.StakeNano)
}

// клиент в очереди и момент постановки
type waitingEntry struct {
	client *Client
	since  time.Time
}

type Hub struct {
	mu       sync.RWMutex
	Rooms    map[uuid.UUID]*Room
	UserRoom map[int64]uuid.UUID
	// отдельный слот ожидания на каждый ключ (тип игры + ставка)
	Waiting map[WaitingKey]*waitingEntry

	manager   *engine.Manager
	balance   *service.BalanceService
	UserRepo  *repository.UserRepository
	queueWait time.Duration
}

func NewHub(balance *service.BalanceService, userRepo *repository.UserRepository, queueWait time.Duration) *Hub {
	if queueWait <= 0 {
		queueWait = 2 * time.Minute
	}
	return &Hub{
		Rooms:     make(map[uuid.UUID]*Room),
		UserRoom:  make(map[int64]uuid.UUID),
		Waiting:   make(map[WaitingKey]*waitingEntry),
		balance:   balance,
		UserRepo:  userRepo,
		queueWait: queueWait,
	}
}

// SetManager связывает хаб с движком. Хаб создается раньше движка,
// потому что движку при создании нужен обработчик событий.
func (h *Hub) SetManager(m *engine.Manager) {
	h.manager = m
}

// AssignClient ищет клиенту соперника. Возвращает комнату, если пара
// сложилась сразу, и nil, если клиент поставлен в очередь: комнату ему
// позже назначит подбор со стороны соперника.
func (h *Hub) AssignClient(c *Client) *Room {
	gameType := domain.GameType(c.GameType)
	if !gameType.Valid() {
		gameType = domain.GameTypeRPS // по умолчанию
	}

	h.mu.Lock()

	log.Printf("Hub.AssignClient: пользователь=%d игра=%s ставка=%d бот=%v (комнат=%d, ожидающих=%d)",
		c.UserID, gameType, c.StakeNano, c.Bot, len(h.Rooms), len(h.Waiting))

	// второе соединение того же пользователя в живую комнату не пускаем
	if roomID, exists := h.UserRoom[c.UserID]; exists {
		if _, ok := h.Rooms[roomID]; ok {
			h.mu.Unlock()
			log.Printf("Hub.AssignClient: пользователь=%d уже в комнате=%s, соединение отклонено", c.UserID, roomID)
			go h.refundStake(c.UserID, c.StakeNano, "duplicate_connection")
			h.rejectClient(c, "у вас уже есть активная партия")
			return nil
		}
		// комната уже убрана, отображение устарело
		delete(h.UserRoom, c.UserID)
	}

	// прежние слоты ожидания этого пользователя снимаются: каждое
	// соединение держит свою ставку, старая возвращается
	var staleWaiters []*Client
	for k, w := range h.Waiting {
		if w.client.UserID == c.UserID && w.client != c {
			log.Printf("Hub.AssignClient: пользователь=%d уже ждал по ключу=%s, слот снимается", c.UserID, k)
			delete(h.Waiting, k)
			metrics.WaitingClients.Dec()
			staleWaiters = append(staleWaiters, w.client)
		}
	}

	// автоматная партия стартует сразу, очередь не нужна
	if c.Bot {
		h.mu.Unlock()
		h.retireWaiters(staleWaiters)
		return h.startBotRoom(c, gameType)
	}

	key := WaitingKey{GameType: gameType, StakeNano: c.StakeNano}

	if w, ok := h.Waiting[key]; ok {
		// проверяем неблокирующей отправкой, живо ли еще соединение
		// ожидающего
		alive := false
		select {
		case w.client.Send <- []byte(`{"type":"ping"}`):
			alive = true
		default:
			log.Printf("Hub.AssignClient: канал ожидающего=%d заблокирован, возможно мертв", w.client.UserID)
		}

		delete(h.Waiting, key)
		metrics.WaitingClients.Dec()

		if alive {
			h.mu.Unlock()
			h.retireWaiters(staleWaiters)
			return h.matchRoom(w.client, c, gameType)
		}

		// возврат мертвому ожидающему: его disconnect мог потеряться
		staleWaiters = append(staleWaiters, w.client)
	}

	// соперника нет, встаем в очередь
	h.Waiting[key] = &waitingEntry{client: c, since: time.Now()}
	metrics.WaitingClients.Inc()
	h.mu.Unlock()

	h.retireWaiters(staleWaiters)

	log.Printf("Hub.AssignClient: пользователь=%d поставлен в очередь по ключу=%s", c.UserID, key)

	h.sendTo(c, Message{
		Type: "queued",
		Payload: map[string]any{
			"game_type":  string(gameType),
			"stake_nano": c.StakeNano,
			"wait_sec":   int64(h.queueWait / time.Second),
		},
	})
	return nil
}

// matchRoom создает сессию движка и комнату для сложившейся пары.
// Ставки обоих уже удержаны их обработчиками.
func (h *Hub) matchRoom(w, c *Client, gameType domain.GameType) *Room {
	sess, err := h.manager.Create(gameType, w.UserID, c.UserID, c.StakeNano)
	if err != nil {
		log.Printf("Hub.matchRoom: не удалось создать сессию %s для %d и %d: %v", gameType, w.UserID, c.UserID, err)
		go h.refundStake(w.UserID, w.StakeNano, "match_failed")
		go h.refundStake(c.UserID, c.StakeNano, "match_failed")
		h.rejectClient(w, "не удалось начать партию")
		h.rejectClient(c, "не удалось начать партию")
		return nil
	}

	room := newRoom(sess.ID, gameType, c.StakeNano, h)
	room.Clients[w.UserID] = w
	room.Clients[c.UserID] = c

	h.mu.Lock()
	h.Rooms[sess.ID] = room
	h.UserRoom[w.UserID] = sess.ID
	h.UserRoom[c.UserID] = sess.ID
	h.mu.Unlock()

	pendingW := w.setRoom(room)
	pendingC := c.setRoom(room)

	log.Printf("Hub.matchRoom: комната=%s игра=%s ставка=%d игроки=%d,%d",
		sess.ID, gameType, c.StakeNano, w.UserID, c.UserID)

	room.announceMatched(w.UserID, c.UserID)

	if err := h.manager.Start(sess.ID); err != nil {
		log.Printf("Hub.matchRoom: сессия=%s не стартовала: %v", sess.ID, err)
	}

	// клиент мог отключиться, пока пара складывалась; его disconnect
	// прошел до появления комнаты, поэтому сдачу проводим здесь.
	// Просрочку часов движок ловит сам, это лишь быстрый путь.
	for _, cl := range [2]*Client{w, c} {
		select {
		case <-cl.Done:
			log.Printf("Hub.matchRoom: пользователь=%d отключился во время подбора, засчитывается сдача", cl.UserID)
			_ = h.manager.Resign(sess.ID, cl.UserID)
		default:
		}
	}

	// сообщения, накопленные до подбора, доигрываются после старта
	for _, m := range pendingW {
		room.HandleMessage(w, m)
	}
	for _, m := range pendingC {
		room.HandleMessage(c, m)
	}

	return room
}

// startBotRoom запускает партию против автомата: второй игрок не нужен,
// сессия стартует сразу
func (h *Hub) startBotRoom(c *Client, gameType domain.GameType) *Room {
	sess, err := h.manager.Create(gameType, c.UserID, domain.BotID, c.StakeNano)
	if err != nil {
		log.Printf("Hub.startBotRoom: не удалось создать сессию для пользователя=%d: %v", c.UserID, err)
		go h.refundStake(c.UserID, c.StakeNano, "match_failed")
		h.rejectClient(c, "не удалось начать партию")
		return nil
	}

	room := newRoom(sess.ID, gameType, c.StakeNano, h)
	room.Clients[c.UserID] = c

	h.mu.Lock()
	h.Rooms[sess.ID] = room
	h.UserRoom[c.UserID] = sess.ID
	h.mu.Unlock()

	pending := c.setRoom(room)

	log.Printf("Hub.startBotRoom: комната=%s игра=%s ставка=%d пользователь=%d",
		sess.ID, gameType, c.StakeNano, c.UserID)

	room.announceMatched(c.UserID, domain.BotID)

	if err := h.manager.Start(sess.ID); err != nil {
		log.Printf("Hub.startBotRoom: сессия=%s не стартовала: %v", sess.ID, err)
	}

	for _, m := range pending {
		room.HandleMessage(c, m)
	}

	return room
}

func (h *Hub) OnDisconnect(c *Client) {
	h.mu.Lock()

	log.Printf("Hub.OnDisconnect: пользователь=%d игра=%s ставка=%d", c.UserID, c.GameType, c.StakeNano)

	// уход из очереди: слот снимается, ставка возвращается
	dropped := false
	for k, w := range h.Waiting {
		if w.client == c {
			log.Printf("Hub.OnDisconnect: пользователь=%d снят с очереди, ключ=%s", c.UserID, k)
			delete(h.Waiting, k)
			metrics.WaitingClients.Dec()
			dropped = true
		}
	}

	var room *Room
	if roomID, ok := h.UserRoom[c.UserID]; ok {
		room = h.Rooms[roomID]
	}
	h.mu.Unlock()

	if dropped {
		h.refundStake(c.UserID, c.StakeNano, "disconnect")
		return
	}

	if room != nil {
		if room.handleDisconnect(c) {
			h.finishRoom(room)
		}
	}
}

// OnEngineEvent транслирует события движка в комнаты. Движок шлет их
// вне блокировки сессии, поэтому обратные вызовы в него безопасны.
func (h *Hub) OnEngineEvent(ev engine.Event) {
	h.mu.RLock()
	room := h.Rooms[ev.SessionID]
	h.mu.RUnlock()

	if room == nil {
		// created приходит до регистрации комнаты, а расчеты уборщика
		// касаются сессий, чьи комнаты давно закрыты
		return
	}

	switch ev.Kind {
	case engine.EventStarted:
		metrics.SessionsStarted.Inc()
		room.broadcastState()
	case engine.EventMoved, engine.EventTimeout:
		room.broadcastState()
	case engine.EventTerminal:
		room.broadcastState()
		h.settleRoom(room)
	case engine.EventSettled:
		// расчет живых комнат инициируется здесь же, в обработке terminal
	}
}

// settleRoom проводит расчет завершенной партии и доставляет итог
func (h *Hub) settleRoom(room *Room) {
	st, err := h.manager.Settle(room.ID)
	if err != nil {
		var already *domain.AlreadySettledError
		if errors.As(err, &already) {
			// кто-то рассчитал раньше; клиентам уходит итог без сумм
			room.sendResult(nil)
			h.finishRoom(room)
			return
		}
		log.Printf("Hub.settleRoom: расчет сессии=%s не прошел: %v", room.ID, err)
		return
	}

	room.sendResult(st)
	h.finishRoom(room)
}

// finishRoom убирает комнату из карт и освобождает сессию движка
func (h *Hub) finishRoom(room *Room) {
	h.mu.Lock()
	delete(h.Rooms, room.ID)
	for uid, rid := range h.UserRoom {
		if rid == room.ID {
			delete(h.UserRoom, uid)
		}
	}
	h.mu.Unlock()

	if err := h.manager.Release(room.ID); err != nil && !errors.Is(err, engine.ErrSessionNotFound) {
		log.Printf("Hub.finishRoom: сессия=%s не освобождена: %v", room.ID, err)
	}
	log.Printf("Hub.finishRoom: комната=%s закрыта", room.ID)
}

// StartCleanup запускает фоновую уборку очереди и осиротевших комнат
func (h *Hub) StartCleanup() {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			h.sweepQueue()
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			h.cleanupStaleRooms()
		}
	}()
}

// sweepQueue снимает из очереди мертвых и заждавшихся клиентов
func (h *Hub) sweepQueue() {
	now := time.Now()

	type droppedEntry struct {
		client  *Client
		expired bool
	}
	var drops []droppedEntry

	h.mu.Lock()
	for k, w := range h.Waiting {
		alive := false
		select {
		case w.client.Send <- []byte(`{"type":"ping"}`):
			alive = true
		default:
		}

		switch {
		case !alive:
			log.Printf("Hub.sweepQueue: ожидающий=%d мертв, ключ=%s", w.client.UserID, k)
			delete(h.Waiting, k)
			metrics.WaitingClients.Dec()
			drops = append(drops, droppedEntry{client: w.client})
		case now.Sub(w.since) > h.queueWait:
			log.Printf("Hub.sweepQueue: ожидающий=%d не дождался соперника, ключ=%s", w.client.UserID, k)
			delete(h.Waiting, k)
			metrics.WaitingClients.Dec()
			drops = append(drops, droppedEntry{client: w.client, expired: true})
		}
	}
	h.mu.Unlock()

	for _, d := range drops {
		if d.expired {
			h.sendTo(d.client, Message{
				Type:    "no_opponent",
				Payload: map[string]string{"message": "соперник не найден, ставка возвращена"},
			})
			h.refundStake(d.client.UserID, d.client.StakeNano, "no_opponent")
			conn := d.client.Conn
			time.AfterFunc(100*time.Millisecond, func() { _ = conn.Close() })
		} else {
			h.refundStake(d.client.UserID, d.client.StakeNano, "dead_connection")
		}
	}
}

// cleanupStaleRooms подчищает пустые комнаты, до которых не дошли
// обычные пути уборки
func (h *Hub) cleanupStaleRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()

	for id, room := range h.Rooms {
		room.mu.RLock()
		empty := len(room.Clients) == 0
		createdAt := room.createdAt
		room.mu.RUnlock()

		if empty && now.Sub(createdAt) > time.Hour {
			delete(h.Rooms, id)
			for uid, rid := range h.UserRoom {
				if rid == id {
					delete(h.UserRoom, uid)
				}
			}
			log.Printf("Hub.cleanupStaleRooms: убрана пустая комната=%s", id)
		}
	}
}

// retireWaiters возвращает ставки снятым с очереди соединениям и
// закрывает их
func (h *Hub) retireWaiters(clients []*Client) {
	for _, old := range clients {
		go h.refundStake(old.UserID, old.StakeNano, "replaced")
		_ = old.Conn.Close()
	}
}

// refundStake возвращает удержанную ставку; вызывать вне блокировки хаба
func (h *Hub) refundStake(userID, stakeNano int64, reason string) {
	if h.balance == nil || stakeNano <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.balance.RefundStake(ctx, userID, stakeNano, reason); err != nil {
		log.Printf("Hub.refundStake: возврат ставки пользователю=%d не прошел: %v", userID, err)
	}
}

// rejectClient отправляет ошибку и закрывает соединение
func (h *Hub) rejectClient(c *Client, reason string) {
	h.sendTo(c, Message{Type: "error", Payload: map[string]string{"message": reason}})
	// даем writePump дописать и закрываем
	conn := c.Conn
	time.AfterFunc(100*time.Millisecond, func() { _ = conn.Close() })
}

// sendTo - неблокирующая отправка конкретному клиенту
func (h *Hub) sendTo(c *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Printf("Hub.sendTo: канал пользователя=%d заполнен, сообщение тип=%s потеряно", c.UserID, msg.Type)
	}
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/engine"
)

// Room доставляет сообщения между клиентами одной сессии и движком.
// Сама партия живет в движке, комната только транслирует ходы туда и
// снимки обратно.
type Room struct {
	ID        uuid.UUID
	GameType  domain.GameType
	StakeNano int64

	mu         sync.RWMutex
	Clients    map[int64]*Client
	createdAt  time.Time
	resultSent bool

	hub *Hub
}

func newRoom(id uuid.UUID, gameType domain.GameType, stakeNano int64, hub *Hub) *Room {
	return &Room{
		ID:        id,
		GameType:  gameType,
		StakeNano: stakeNano,
		Clients:   make(map[int64]*Client),
		createdAt: time.Now(),
		hub:       hub,
	}
}

func (r *Room) HandleMessage(c *Client, raw []byte) {
	var msg struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("Room.HandleMessage: не удалось разобрать сообщение: %v", err)
		return
	}

	log.Printf("Room.HandleMessage: комната=%s пользователь=%d тип=%s", r.ID, c.UserID, msg.Type)

	switch msg.Type {
	case "move":
		if err := r.hub.manager.SubmitMove(r.ID, c.UserID, msg.Value); err != nil {
			log.Printf("Room.HandleMessage: ход пользователя=%d отклонен: %v", c.UserID, err)
			r.send(c.UserID, Message{
				Type:    "error",
				Payload: map[string]string{"message": err.Error()},
			})
		}
	case "resign":
		if err := r.hub.manager.Resign(r.ID, c.UserID); err != nil {
			log.Printf("Room.HandleMessage: сдача пользователя=%d отклонена: %v", c.UserID, err)
			r.send(c.UserID, Message{
				Type:    "error",
				Payload: map[string]string{"message": err.Error()},
			})
		}
	case "state":
		r.sendState(c.UserID)
	default:
		r.send(c.UserID, Message{
			Type:    "error",
			Payload: map[string]string{"message": "неизвестный тип сообщения"},
		})
	}
}

// announceMatched сообщает обоим участникам о найденном сопернике
func (r *Room) announceMatched(p1, p2 int64) {
	info := func(id int64) map[string]any {
		if id == domain.BotID {
			return map[string]any{"id": id, "first_name": "Автомат"}
		}
		if r.hub.UserRepo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if u, err := r.hub.UserRepo.GetByID(ctx, id); err == nil && u != nil {
				return map[string]any{
					"id":         id,
					"first_name": u.FirstName,
					"username":   u.Username,
				}
			}
		}
		return map[string]any{"id": id}
	}

	for _, pair := range [2][2]int64{{p1, p2}, {p2, p1}} {
		you, opponent := pair[0], pair[1]
		if you == domain.BotID {
			continue
		}
		r.send(you, Message{
			Type: "matched",
			Payload: map[string]any{
				"session_id": r.ID,
				"game_type":  string(r.GameType),
				"stake_nano": r.StakeNano,
				"opponent":   info(opponent),
			},
		})
	}
}

// broadcastState рассылает каждому участнику его персональный снимок;
// чужая скрытая информация в снимок не попадает еще в движке
func (r *Room) broadcastState() {
	for _, c := range r.clients() {
		r.sendState(c.UserID)
	}
}

func (r *Room) sendState(userID int64) {
	v, err := r.hub.manager.View(r.ID, userID)
	if err != nil {
		log.Printf("Room.sendState: снимок для пользователя=%d не построен: %v", userID, err)
		return
	}
	r.send(userID, Message{Type: "state", Payload: v})
}

// sendResult доставляет каждому участнику итог партии: сторона исхода из
// его персонального снимка, суммы из расчета
func (r *Room) sendResult(st *domain.Settlement) {
	r.mu.Lock()
	if r.resultSent {
		r.mu.Unlock()
		return
	}
	r.resultSent = true
	r.mu.Unlock()

	for _, c := range r.clients() {
		v, err := r.hub.manager.View(r.ID, c.UserID)
		if err != nil {
			log.Printf("Room.sendResult: снимок для пользователя=%d не построен: %v", c.UserID, err)
			continue
		}

		payload := map[string]any{
			"session_id": r.ID,
			"you":        personalResult(v),
			"result":     v.Result,
		}
		if v.Outcome != nil {
			payload["reason"] = string(v.Outcome.Reason)
			if v.Outcome.Detail != "" {
				payload["detail"] = v.Outcome.Detail
			}
		}
		if st != nil {
			payload["stake_nano"] = st.StakeNano
			payload["rake_nano"] = st.RakeNano
			if st.IsDraw() {
				payload["refund_nano"] = st.PayoutNano
			} else if st.WinnerID != nil && *st.WinnerID == c.UserID {
				payload["win_nano"] = st.PayoutNano
			}
		}

		r.send(c.UserID, Message{Type: "result", Payload: payload})
	}
}

// исход глазами участника, для которого построен снимок
func personalResult(v *engine.View) string {
	if v.Outcome == nil {
		return ""
	}
	if v.Outcome.Winner == nil {
		return "draw"
	}
	if v.Outcome.Winner.Key() == v.You {
		return "win"
	}
	return "lose"
}

// handleDisconnect обрабатывает уход клиента: идущая партия засчитывается
// как сдача, чтобы уход не был бесплатным выходом из проигрываемой
// позиции. Возвращает true, когда комната осталась пустой.
func (r *Room) handleDisconnect(c *Client) bool {
	r.mu.Lock()
	delete(r.Clients, c.UserID)
	clientsLeft := len(r.Clients)
	resultSent := r.resultSent
	r.mu.Unlock()

	log.Printf("Room.handleDisconnect: комната=%s пользователь=%d осталось=%d", r.ID, c.UserID, clientsLeft)

	if !resultSent {
		if err := r.hub.manager.Resign(r.ID, c.UserID); err != nil {
			var stateErr *domain.InvalidSessionStateError
			switch {
			case errors.As(err, &stateErr) && stateErr.State == domain.SessionPending:
				// партия не успела начаться, закрываем ничьей
				if err := r.hub.manager.Abandon(r.ID); err != nil {
					log.Printf("Room.handleDisconnect: сессия=%s не закрыта после ухода: %v", r.ID, err)
				}
			case errors.As(err, &stateErr):
				// партия уже завершена, делать нечего
			default:
				log.Printf("Room.handleDisconnect: сдача после ухода пользователя=%d не прошла: %v", c.UserID, err)
			}
		}
	}

	return clientsLeft == 0
}

// копия списка клиентов под блокировкой
func (r *Room) clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.Clients))
	for _, c := range r.Clients {
		out = append(out, c)
	}
	return out
}

func (r *Room) send(userID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Room.send: ошибка сериализации: %v", err)
		return
	}

	r.mu.RLock()
	c, ok := r.Clients[userID]
	r.mu.RUnlock()

	if !ok {
		log.Printf("Room.send: пользователь=%d не в комнате=%s", userID, r.ID)
		return
	}

	select {
	case c.Send <- data:
	case <-time.After(2 * time.Second):
		log.Printf("Room.send: таймаут отправки пользователю=%d тип=%s", userID, msg.Type)
		return
	}

	// доставку результата подтверждает writePump, иначе комната могла бы
	// закрыться раньше записи в сокет
	if msg.Type == "result" && c.ResultAck != nil {
		select {
		case <-c.ResultAck:
		case <-time.After(2 * time.Second):
			log.Printf("Room.send: подтверждение результата от пользователя=%d не получено", userID)
		}
	}
}

package ws

import (
	"bytes"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"telegram_arena/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

type Client struct {
	UserID    int64
	GameType  string
	StakeNano int64
	Bot       bool
	Conn      *websocket.Conn
	Send      chan []byte

	Hub       *Hub
	Ready     chan struct{}
	ResultAck chan struct{}
	Done      chan struct{}

	// комната появляется только после подбора соперника; до этого
	// входящие сообщения копятся в pending
	pendingMu sync.Mutex
	room      *Room
	pending   [][]byte
}

func NewClient(userID int64, conn *websocket.Conn, hub *Hub, gameType string, stakeNano int64, bot bool) *Client {
	return &Client{
		UserID:    userID,
		GameType:  gameType,
		StakeNano: stakeNano,
		Bot:       bot,
		Conn:      conn,
		Send:      make(chan []byte, 1024),
		Hub:       hub,
		Ready:     make(chan struct{}),
		ResultAck: make(chan struct{}, 1),
		Done:      make(chan struct{}),
	}
}

func (c *Client) Run() {
	metrics.WsConnections.Inc()
	defer metrics.WsConnections.Dec()

	// запускаем writer первым, чтобы подбор мог сразу слать сообщения
	go c.writePump()
	// сигнализируем, что writePump запущен
	close(c.Ready)

	// отправляем явный хендшейк готовности, клиент ждет его перед ходами
	readyMsg := []byte(`{"type":"ready"}`)
	select {
	case c.Send <- readyMsg:
	case <-time.After(500 * time.Millisecond):
		log.Printf("Client.Run: таймаут постановки в очередь ready для пользователя=%d", c.UserID)
	}

	// запускаем readPump рано, чтобы не пропустить сообщения во время матчмейкинга
	go c.readPump()

	// назначаем комнату (матчмейкинг / автоматная партия)
	if room := c.Hub.AssignClient(c); room != nil {
		log.Printf("Client.Run: пользователь=%d назначен в комнату=%s", c.UserID, room.ID)
	} else {
		// соперника пока нет: клиент стоит в очереди, комнату позже
		// назначит хаб
		log.Printf("Client.Run: пользователь=%d ожидает соперника (игра=%s ставка=%d)", c.UserID, c.GameType, c.StakeNano)
	}

	<-c.Done
}

// Room возвращает назначенную комнату; до подбора ее нет
func (c *Client) Room() *Room {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.room
}

// setRoom фиксирует комнату и отдает сообщения, накопленные до подбора
func (c *Client) setRoom(r *Room) [][]byte {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.room = r
	pending := c.pending
	c.pending = nil
	return pending
}

// read
func (c *Client) readPump() {
	defer func() {
		c.disconnect()
		close(c.Done)
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			log.Println("ошибка чтения:", err)
			break
		}

		c.pendingMu.Lock()
		room := c.room
		if room == nil {
			// буферизуем сообщение до назначения комнаты
			c.pending = append(c.pending, append([]byte(nil), msg...))
			c.pendingMu.Unlock()
			log.Printf("Client.readPump: пользователь=%d буферизировал %d байт (еще нет комнаты)", c.UserID, len(msg))
			continue
		}
		c.pendingMu.Unlock()

		room.HandleMessage(c, msg)
	}
}

// write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("Client.writePump: пользователь=%d ошибка записи: %v", c.UserID, err)
				return
			}

			// если это было сообщение о результате, подтверждаем его,
			// чтобы комната могла дождаться доставки
			if bytes.Contains(msg, []byte(`"type":"result"`)) {
				select {
				case c.ResultAck <- struct{}{}:
				default:
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect
func (c *Client) disconnect() {
	c.Hub.OnDisconnect(c)
	_ = c.Conn.Close()
}

package ws

// Message - конверт всех сообщений поверх websocket, в обе стороны
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

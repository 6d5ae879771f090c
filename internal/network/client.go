package network

import (
	"encoding/json"
	"sync"

	"github.com/annel0/voxel-editor/internal/render"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Размер очереди клиента сверх начального снимка сцены
const sendQueue = 256

// Client подключённый клиент потока
type Client struct {
	conn     *websocket.Conn // WebSocket соединение
	send     chan []byte     // Канал для отправки сообщений
	id       string          // Уникальный идентификатор
	sequence uint32          // Счетчик отправленных сообщений
	closed   bool
	mu       sync.Mutex
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		id:   uuid.NewString(),
	}
}

// ID идентификатор клиента
func (c *Client) ID() string { return c.id }

// open выделяет очередь под снимок из n инстансов
func (c *Client) open(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.send = make(chan []byte, sendQueue+n+2)
}

// enqueue нумерует сообщение и кладёт его в очередь.
// false означает, что очередь переполнена или клиент закрыт.
func (c *Client) enqueue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.send == nil {
		return false
	}

	msg.Sequence = c.sequence
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	select {
	case c.send <- data:
		c.sequence++
		return true
	default:
		return false
	}
}

func (c *Client) push(msgType string, data interface{}) bool {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return false
	}
	return c.enqueue(*msg)
}

// close закрывает очередь; writePump отправит CloseMessage и завершится
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.send != nil {
		close(c.send)
	}
}

// clientSink направляет снимок буфера одному клиенту
type clientSink struct {
	c *Client
}

func (cs clientSink) Upsert(slot int, inst render.Instance) {
	cs.c.push(MsgTypeUpsert, UpsertData{Slot: slot, Instance: inst})
}

func (cs clientSink) Remove(slot int) {
	cs.c.push(MsgTypeRemove, RemoveData{Slot: slot})
}

func (cs clientSink) Reset() {
	cs.c.push(MsgTypeReset, nil)
}

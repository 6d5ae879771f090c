package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/gorilla/websocket"
)

const (
	joinTimeout  = 5 * time.Second
	inputTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
	maxInputSize = 4096
)

// Конфигурация WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Streams хранит потоки отрисовки всех сессий
type Streams struct {
	mu      sync.Mutex
	hubs    map[string]*Hub
	metrics *Metrics
	log     *logging.Logger
}

// NewStreams создаёт реестр потоков
func NewStreams(metrics *Metrics) *Streams {
	return &Streams{
		hubs:    make(map[string]*Hub),
		metrics: metrics,
		log:     logging.GetStreamLogger(),
	}
}

// Hub возвращает поток сессии, создавая его при необходимости
func (st *Streams) Hub(sessionID string) *Hub {
	st.mu.Lock()
	defer st.mu.Unlock()

	hub, ok := st.hubs[sessionID]
	if !ok {
		hub = newHub(sessionID, st.metrics, st.log)
		st.hubs[sessionID] = hub
	}
	return hub
}

// SinkFactory подключает буфер каждой новой сессии к её потоку
func (st *Streams) SinkFactory() editor.SinkFactory {
	return func(sessionID string) render.Sink {
		return st.Hub(sessionID)
	}
}

// Close закрывает поток сессии
func (st *Streams) Close(sessionID string) {
	st.mu.Lock()
	hub, ok := st.hubs[sessionID]
	delete(st.hubs, sessionID)
	st.mu.Unlock()

	if ok {
		hub.close()
	}
}

// CloseAll закрывает все потоки
func (st *Streams) CloseAll() {
	st.mu.Lock()
	hubs := st.hubs
	st.hubs = make(map[string]*Hub)
	st.mu.Unlock()

	for _, hub := range hubs {
		hub.close()
	}
}

// Serve переводит запрос в WebSocket и подключает клиента к потоку сессии.
// Клиент сначала получает reset и полный снимок буфера, затем изменения.
func (st *Streams) Serve(w http.ResponseWriter, r *http.Request, loop *editor.Loop) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := newClient(conn)
	hub := st.Hub(loop.ID())

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	err = loop.Do(ctx, func(s *editor.Session) error {
		return hub.join(client, s)
	})
	cancel()
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return err
	}

	// Запускаем горутины для чтения и записи
	go st.writePump(client)
	go st.readPump(hub, client, loop)
	return nil
}

// readPump читает входные события клиента и выполняет их в цикле сессии
func (st *Streams) readPump(hub *Hub, client *Client, loop *editor.Loop) {
	defer func() {
		hub.leave(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxInputSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				st.log.Warn("Session %s: ошибка чтения от %s: %v", loop.ID(), client.id, err)
			}
			return
		}

		var in editor.Input
		if err := json.Unmarshal(data, &in); err != nil {
			st.metrics.input("invalid", err)
			if !client.push(MsgTypeError, ErrorData{Message: "invalid input: " + err.Error()}) {
				return
			}
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), inputTimeout)
		res, err := editor.Query(ctx, loop, func(s *editor.Session) (editor.InputResult, error) {
			return s.Apply(ctx, in)
		})
		cancel()

		label := in.Type
		if errors.Is(err, editor.ErrUnknownInput) {
			label = "unknown"
		}
		st.metrics.input(label, err)

		if errors.Is(err, editor.ErrLoopStopped) {
			client.push(MsgTypeClosed, nil)
			return
		}

		var ok bool
		if err != nil {
			ok = client.push(MsgTypeError, ErrorData{Input: in.Type, Message: err.Error()})
		} else {
			ok = client.push(MsgTypeResult, ResultData{Input: in.Type, Result: res})
		}
		if !ok {
			return
		}
	}
}

// writePump асинхронно отправляет сообщения клиенту
func (st *Streams) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрыт
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Sessions число сессий, для которых открыт поток
func (st *Streams) Sessions() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.hubs)
}

// Clients общее число подключённых клиентов всех потоков
func (st *Streams) Clients() int {
	st.mu.Lock()
	hubs := make([]*Hub, 0, len(st.hubs))
	for _, hub := range st.hubs {
		hubs = append(hubs, hub)
	}
	st.mu.Unlock()

	total := 0
	for _, hub := range hubs {
		total += hub.Clients()
	}
	return total
}

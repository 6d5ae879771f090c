package network

import (
	"errors"
	"sync"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/render"
)

// ErrStreamClosed поток сессии закрыт
var ErrStreamClosed = errors.New("stream closed")

// Hub рассылает изменения буфера одной сессии всем её клиентам.
// Реализует render.Sink и render.ShadowSink. Методы приёмника вызываются
// из цикла сессии и не блокируются: клиент с переполненной очередью отключается.
type Hub struct {
	sessionID string
	mu        sync.RWMutex
	clients   map[string]*Client
	closed    bool
	metrics   *Metrics
	log       *logging.Logger
}

func newHub(sessionID string, metrics *Metrics, log *logging.Logger) *Hub {
	return &Hub{
		sessionID: sessionID,
		clients:   make(map[string]*Client),
		metrics:   metrics,
		log:       log,
	}
}

// Upsert реализует render.Sink
func (h *Hub) Upsert(slot int, inst render.Instance) {
	h.broadcast(MsgTypeUpsert, UpsertData{Slot: slot, Instance: inst})
}

// Remove реализует render.Sink
func (h *Hub) Remove(slot int) {
	h.broadcast(MsgTypeRemove, RemoveData{Slot: slot})
}

// Reset реализует render.Sink
func (h *Hub) Reset() {
	h.broadcast(MsgTypeReset, nil)
}

// Shadow реализует render.ShadowSink
func (h *Hub) Shadow(visible bool, inst render.Instance) {
	h.broadcast(MsgTypeShadow, ShadowData{Visible: visible, Instance: inst})
}

// Clients количество подключённых клиентов
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msgType string, data interface{}) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		h.log.Error("Session %s: ошибка сериализации %s: %v", h.sessionID, msgType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		if client.enqueue(*msg) {
			h.metrics.sent(msgType)
			continue
		}
		// Если канал переполнен, закрываем соединение
		client.close()
		delete(h.clients, id)
		h.metrics.drop()
		h.metrics.clientLeft()
		h.log.Warn("Session %s: клиент %s отключён, очередь переполнена", h.sessionID, id)
	}
}

// join отправляет клиенту снимок сцены и превью, затем подписывает его на изменения.
// Вызывается в цикле сессии, поэтому между снимком и подпиской изменений нет.
func (h *Hub) join(client *Client, s *editor.Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrStreamClosed
	}

	client.open(s.Buffer().Len())
	s.Buffer().Replay(clientSink{client})

	view := s.View().Shadow
	cell, _ := s.Candidate()
	client.push(MsgTypeShadow, ShadowData{Visible: view.Visible, Instance: render.NewInstance(cell, view.Color)})

	h.clients[client.id] = client
	h.metrics.clientJoined()
	h.log.Info("Session %s: клиент %s подключён (%d вокселей)", h.sessionID, client.id, s.Buffer().Len())
	return nil
}

// leave отписывает клиента
func (h *Hub) leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; !ok {
		return
	}
	client.close()
	delete(h.clients, client.id)
	h.metrics.clientLeft()
	h.log.Info("Session %s: клиент %s отключён", h.sessionID, client.id)
}

// close уведомляет клиентов о закрытии сессии и отключает их
func (h *Hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, client := range h.clients {
		client.push(MsgTypeClosed, nil)
		client.close()
		delete(h.clients, id)
		h.metrics.clientLeft()
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/nats-io/nats.go"
)

// Заголовок с идентификатором узла-отправителя
const nodeHeader = "Editor-Node"

// InvalidationMessage тело уведомления об изменённой раскладке
type InvalidationMessage struct {
	Name    string    `json:"name"`
	Changed time.Time `json:"changed"`
}

// InvalidatorStats счётчики NATS-инвалидации, попадают в /api/stats
type InvalidatorStats struct {
	Sent      int64 `json:"sent"`
	Received  int64 `json:"received"`
	Skipped   int64 `json:"skipped_own"`
	Failed    int64 `json:"failed"`
	Connected bool  `json:"connected"`
}

// NATSInvalidator реализует Invalidator поверх NATS Pub/Sub.
// Узел узнаёт свои сообщения по заголовку Editor-Node и не обрабатывает их.
type NATSInvalidator struct {
	conn    *nats.Conn
	subject string
	nodeID  string

	mu      sync.Mutex
	sub     *nats.Subscription
	handler InvalidationHandler

	sent     atomic.Int64
	received atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

// NewNATSInvalidator подключается к cfg.NATSURL; nodeID отличает этот
// экземпляр сервера от остальных.
func NewNATSInvalidator(cfg Config, nodeID string) (*NATSInvalidator, error) {
	def := DefaultConfig()
	if cfg.Subject == "" {
		cfg.Subject = def.Subject
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("voxel-editor-cache-"+nodeID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn("🗃️ Инвалидация кеша: NATS отключён: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("🗃️ Инвалидация кеша: переподключились к %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.NATSURL, err)
	}

	logging.Info("🗃️ Инвалидация кеша через NATS %s, subject %s", cfg.NATSURL, cfg.Subject)
	return &NATSInvalidator{conn: conn, subject: cfg.Subject, nodeID: nodeID}, nil
}

// PublishInvalidation сообщает остальным узлам, что раскладка name изменилась
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(InvalidationMessage{Name: name, Changed: time.Now().UTC()})
	if err != nil {
		n.failed.Add(1)
		return fmt.Errorf("encode invalidation %s: %w", name, err)
	}

	msg := nats.NewMsg(n.subject)
	msg.Header.Set(nodeHeader, n.nodeID)
	msg.Data = body
	if err := n.conn.PublishMsg(msg); err != nil {
		n.failed.Add(1)
		return fmt.Errorf("publish invalidation %s: %w", name, err)
	}
	n.sent.Add(1)
	return nil
}

// SubscribeInvalidations допускает одну подписку; она снимается при отмене
// ctx или Close.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sub != nil {
		return errors.New("invalidations: already subscribed")
	}

	sub, err := n.conn.Subscribe(n.subject, n.onMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", n.subject, err)
	}
	n.sub, n.handler = sub, handler

	go func() {
		<-ctx.Done()
		n.dropSubscription()
	}()
	return nil
}

func (n *NATSInvalidator) onMessage(msg *nats.Msg) {
	if msg.Header.Get(nodeHeader) == n.nodeID {
		n.skipped.Add(1)
		return
	}
	n.received.Add(1)

	var m InvalidationMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil || m.Name == "" {
		n.failed.Add(1)
		logging.Warn("⚠️ Некорректное уведомление об инвалидации: %q", msg.Data)
		return
	}

	n.mu.Lock()
	handler := n.handler
	n.mu.Unlock()
	if handler == nil {
		return
	}
	if err := handler(m.Name); err != nil {
		n.failed.Add(1)
		logging.Error("❌ Инвалидация раскладки %s: %v", m.Name, err)
	}
}

// Stats снимок счётчиков
func (n *NATSInvalidator) Stats() InvalidatorStats {
	return InvalidatorStats{
		Sent:      n.sent.Load(),
		Received:  n.received.Load(),
		Skipped:   n.skipped.Load(),
		Failed:    n.failed.Load(),
		Connected: n.conn.IsConnected(),
	}
}

// Close снимает подписку и закрывает соединение
func (n *NATSInvalidator) Close() error {
	n.dropSubscription()
	n.conn.Close()
	return nil
}

func (n *NATSInvalidator) dropSubscription() {
	n.mu.Lock()
	sub := n.sub
	n.sub, n.handler = nil, nil
	n.mu.Unlock()
	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		logging.Warn("⚠️ Отписка от инвалидаций: %v", err)
	}
}

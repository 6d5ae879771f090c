package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

// Subject'ы редактора: editor.<EventType>.<session>
const (
	subjectPrefix = "editor"
	globalToken   = "global"
)

// JetStreamBus реализует EventBus поверх NATS JetStream.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string

	mu   sync.Mutex
	subs map[*nats.Subscription]struct{}

	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к NATS и создаёт стрим, если его ещё нет.
// url: nats://127.0.0.1:4222, stream: "EDITOR".
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "EDITOR"
	}

	nc, err := nats.Connect(url,
		nats.Name("voxel-editor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subjectPrefix + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", stream, err)
		}
	}

	return &JetStreamBus{
		nc:     nc,
		js:     js,
		stream: stream,
		subs:   make(map[*nats.Subscription]struct{}),
	}, nil
}

// subjectToken заменяет символы, недопустимые в токене subject'а
func subjectToken(s string) string {
	if s == "" {
		return globalToken
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

func subjectFor(ev *Envelope) string {
	return subjectPrefix + "." + subjectToken(ev.EventType) + "." + subjectToken(ev.CorrelationID)
}

// filterSubject сужает subject подписки, если фильтр задаёт ровно один
// тип или одну сессию; остальное отсеивает matchFilter.
func filterSubject(f Filter) string {
	eventType, session := "*", "*"
	if len(f.Types) == 1 {
		eventType = subjectToken(f.Types[0])
	}
	if len(f.Sessions) == 1 {
		session = subjectToken(f.Sessions[0])
	}
	return subjectPrefix + "." + eventType + "." + session
}

// Publish сериализует Envelope в JSON и публикует в subject сессии.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	msg := nats.NewMsg(subjectFor(ev))
	msg.Data = data
	if ev.ID != "" {
		msg.Header.Set(nats.MsgIdHdr, ev.ID)
	}
	if _, err = jb.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт эфемерный consumer, получающий только новые события.
// Подписка снимается при отмене ctx или через Unsubscribe.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	natSub, err := jb.js.Subscribe(filterSubject(f), func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.BindStream(jb.stream), nats.DeliverNew(), nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", filterSubject(f), err)
	}

	jb.mu.Lock()
	jb.subs[natSub] = struct{}{}
	jb.mu.Unlock()

	sub := &jetSub{bus: jb, s: natSub, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()
	return sub, nil
}

func (jb *JetStreamBus) forget(s *nats.Subscription) bool {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	if _, ok := jb.subs[s]; !ok {
		return false
	}
	delete(jb.subs, s)
	return true
}

type jetSub struct {
	bus  *JetStreamBus
	s    *nats.Subscription
	once sync.Once
	done chan struct{}
}

func (j *jetSub) Unsubscribe() {
	j.once.Do(func() {
		close(j.done)
		if j.bus.forget(j.s) {
			_ = j.s.Unsubscribe()
		}
	})
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	jb.mu.Lock()
	inFlight := 0
	for s := range jb.subs {
		if n, _, err := s.Pending(); err == nil {
			inFlight += n
		}
	}
	jb.mu.Unlock()

	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  inFlight,
	}
}

// Close дренирует соединение; подписки завершаются вместе с ним
func (jb *JetStreamBus) Close() error {
	jb.mu.Lock()
	jb.subs = make(map[*nats.Subscription]struct{})
	jb.mu.Unlock()
	return jb.nc.Drain()
}

package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/voxel-editor/internal/logging"
)

type command struct {
	fn     func(*Session) error
	result chan error
}

// Loop владеет сессией: тикает кадры с фиксированной частотой и между кадрами
// выполняет присланные команды. Паника в команде или кадре перехватывается,
// цикл продолжает работу.
type Loop struct {
	session  *Session
	interval time.Duration
	cmds     chan command
	quit     chan struct{}
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
	log      *logging.Logger
}

// NewLoop создаёт цикл для сессии. interval <= 0 отключает тики кадров:
// кадры тогда пересчитываются только командами.
func NewLoop(s *Session, interval time.Duration) *Loop {
	return &Loop{
		session:  s,
		interval: interval,
		cmds:     make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      s.log,
	}
}

// ID идентификатор сессии цикла
func (l *Loop) ID() string { return l.session.id }

// Start запускает цикл
func (l *Loop) Start() {
	l.start.Do(func() {
		go l.run()
	})
}

// Stop останавливает цикл и дожидается его завершения
func (l *Loop) Stop() {
	l.stop.Do(func() {
		close(l.quit)
	})
	l.start.Do(func() { close(l.done) })
	<-l.done
}

// Do выполняет fn в горутине цикла и возвращает её ошибку
func (l *Loop) Do(ctx context.Context, fn func(*Session) error) error {
	cmd := command{fn: fn, result: make(chan error, 1)}

	select {
	case l.cmds <- cmd:
	case <-l.quit:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.done)

	var tick <-chan time.Time
	if l.interval > 0 {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			if err := l.safe(func(s *Session) error { s.Frame(); return nil }); err != nil {
				l.log.Error("Session %s: ошибка кадра: %v", l.session.id, err)
			}
		case cmd := <-l.cmds:
			cmd.result <- l.safe(cmd.fn)
		case <-l.quit:
			return
		}
	}
}

// safe выполняет fn, превращая панику в ошибку
func (l *Loop) safe(fn func(*Session) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCommandPanic, r)
			l.log.Error("Session %s: %v", l.session.id, err)
		}
	}()
	return fn(l.session)
}

// Query выполняет fn в цикле и возвращает её результат.
// Результат передаётся через канал, поэтому вызов безопасен и при отмене ctx.
func Query[T any](ctx context.Context, l *Loop, fn func(*Session) (T, error)) (T, error) {
	out := make(chan T, 1)
	err := l.Do(ctx, func(s *Session) error {
		v, err := fn(s)
		out <- v
		return err
	})

	select {
	case v := <-out:
		return v, err
	default:
		var zero T
		return zero, err
	}
}

package eventbus

import (
	"context"
	"errors"
)

// ErrBusClosed публикация в закрытую шину
var ErrBusClosed = errors.New("event bus closed")

var globalBus EventBus

// Init устанавливает глобальную шину.
func Init(bus EventBus) { globalBus = bus }

// Get возвращает глобальную шину или nil
func Get() EventBus { return globalBus }

// Publish отправляет событие в глобальную шину, если она инициализирована.
func Publish(ctx context.Context, ev *Envelope) error {
	if globalBus == nil {
		return nil
	}
	return globalBus.Publish(ctx, ev)
}

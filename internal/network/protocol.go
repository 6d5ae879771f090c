// Package network раздаёт изменения инстансного буфера сессии клиентам
// по WebSocket и принимает от них входные события редактора.
package network

import (
	"encoding/json"
	"time"

	"github.com/annel0/voxel-editor/internal/editor"
	"github.com/annel0/voxel-editor/internal/render"
)

// Константы типов сообщений
const (
	// Клиент -> Сервер: типы editor.Input (pointer, press, key, ...)

	// Сервер -> Клиент
	MsgTypeReset  = "reset"  // Очистить буфер отрисовки
	MsgTypeUpsert = "upsert" // Записать инстанс в слот
	MsgTypeRemove = "remove" // Удалить слот
	MsgTypeShadow = "shadow" // Превью размещения
	MsgTypeResult = "result" // Итог входного события
	MsgTypeError  = "error"  // Ошибка входного события
	MsgTypeClosed = "closed" // Сессия закрыта
)

// Message конверт всех исходящих сообщений потока
type Message struct {
	Type      string          `json:"type"`
	Sequence  uint32          `json:"seq"`
	Timestamp int64           `json:"ts"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage упаковывает данные в конверт
func NewMessage(msgType string, data interface{}) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	msg.Data = raw
	return msg, nil
}

// UpsertData инстанс в слоте буфера
type UpsertData struct {
	Slot     int             `json:"slot"`
	Instance render.Instance `json:"instance"`
}

// RemoveData удаляемый слот
type RemoveData struct {
	Slot int `json:"slot"`
}

// ShadowData состояние превью
type ShadowData struct {
	Visible  bool            `json:"visible"`
	Instance render.Instance `json:"instance"`
}

// ErrorData ошибка обработки входного события
type ErrorData struct {
	Input   string `json:"input"`
	Message string `json:"message"`
}

// ResultData ответ на входное событие
type ResultData struct {
	Input  string             `json:"input"`
	Result editor.InputResult `json:"result"`
}

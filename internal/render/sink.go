package render

import "sync"

// Sink получает изменения инстанс-буфера. id — номер слота в буфере.
type Sink interface {
	Upsert(id int, inst Instance)
	Remove(id int)
	Reset()
}

// ShadowSink дополнительно принимает состояние превью-куба
type ShadowSink interface {
	Shadow(visible bool, inst Instance)
}

// NopSink ничего не делает
type NopSink struct{}

func (NopSink) Upsert(int, Instance) {}
func (NopSink) Remove(int)           {}
func (NopSink) Reset()               {}

// SinkOp тип операции, записанной RecordingSink
type SinkOp string

const (
	OpUpsert SinkOp = "upsert"
	OpRemove SinkOp = "remove"
	OpReset  SinkOp = "reset"
	OpShadow SinkOp = "shadow"
)

// SinkEvent одна записанная операция
type SinkEvent struct {
	Op       SinkOp
	ID       int
	Instance Instance
	Visible  bool
}

// RecordingSink запоминает все операции и держит зеркало буфера.
// Используется в тестах и для проверки синхронизации.
type RecordingSink struct {
	mu     sync.Mutex
	events []SinkEvent
	mirror map[int]Instance
}

// NewRecordingSink создаёт пустой RecordingSink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{mirror: make(map[int]Instance)}
}

func (rs *RecordingSink) Upsert(id int, inst Instance) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, SinkEvent{Op: OpUpsert, ID: id, Instance: inst})
	rs.mirror[id] = inst
}

func (rs *RecordingSink) Remove(id int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, SinkEvent{Op: OpRemove, ID: id})
	delete(rs.mirror, id)
}

func (rs *RecordingSink) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, SinkEvent{Op: OpReset})
	rs.mirror = make(map[int]Instance)
}

func (rs *RecordingSink) Shadow(visible bool, inst Instance) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.events = append(rs.events, SinkEvent{Op: OpShadow, Instance: inst, Visible: visible})
}

// Events возвращает копию журнала операций
func (rs *RecordingSink) Events() []SinkEvent {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]SinkEvent, len(rs.events))
	copy(out, rs.events)
	return out
}

// Mirror возвращает копию текущего зеркала буфера: слот -> инстанс
func (rs *RecordingSink) Mirror() map[int]Instance {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[int]Instance, len(rs.mirror))
	for k, v := range rs.mirror {
		out[k] = v
	}
	return out
}

// LastShadow возвращает последнее состояние превью
func (rs *RecordingSink) LastShadow() (SinkEvent, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for i := len(rs.events) - 1; i >= 0; i-- {
		if rs.events[i].Op == OpShadow {
			return rs.events[i], true
		}
	}
	return SinkEvent{}, false
}

package render

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/world"
)

// DefaultCapacity ёмкость буфера по умолчанию
const DefaultCapacity = 1000

// ErrCapacityExceeded буфер заполнен и расти не может
var ErrCapacityExceeded = errors.New("instance buffer capacity exceeded")

// Options параметры инстанс-буфера
type Options struct {
	Capacity int
	// AutoGrow удваивает ёмкость при заполнении, но не выше MaxCapacity
	AutoGrow    bool
	MaxCapacity int
}

// InstanceBuffer плотный массив инстансов с жёсткой ёмкостью.
// Слоты 0..Len()-1 всегда заняты: удаление переносит последний инстанс
// в освободившийся слот.
type InstanceBuffer struct {
	opts      Options
	capacity  int
	instances []Instance
	cells     []grid.Cell
	slots     map[grid.Cell]int
	sink      Sink
}

// NewInstanceBuffer создаёт буфер. nil sink заменяется на NopSink.
func NewInstanceBuffer(opts Options, sink Sink) *InstanceBuffer {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxCapacity < opts.Capacity {
		opts.MaxCapacity = opts.Capacity
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &InstanceBuffer{
		opts:      opts,
		capacity:  opts.Capacity,
		instances: make([]Instance, 0, opts.Capacity),
		cells:     make([]grid.Cell, 0, opts.Capacity),
		slots:     make(map[grid.Cell]int, opts.Capacity),
		sink:      sink,
	}
}

// SetSink меняет приёмник изменений. nil отключает вывод.
func (b *InstanceBuffer) SetSink(sink Sink) {
	if sink == nil {
		sink = NopSink{}
	}
	b.sink = sink
}

// Sink возвращает текущий приёмник
func (b *InstanceBuffer) Sink() Sink {
	return b.sink
}

// Len количество живых инстансов
func (b *InstanceBuffer) Len() int {
	return len(b.instances)
}

// Capacity текущая ёмкость
func (b *InstanceBuffer) Capacity() int {
	return b.capacity
}

// Slot возвращает слот ячейки
func (b *InstanceBuffer) Slot(cell grid.Cell) (int, bool) {
	slot, ok := b.slots[cell]
	return slot, ok
}

// Instance возвращает инстанс в слоте
func (b *InstanceBuffer) Instance(slot int) (Instance, bool) {
	if slot < 0 || slot >= len(b.instances) {
		return Instance{}, false
	}
	return b.instances[slot], true
}

// Instances возвращает копию живых инстансов по порядку слотов
func (b *InstanceBuffer) Instances() []Instance {
	out := make([]Instance, len(b.instances))
	copy(out, b.instances)
	return out
}

// reserve проверяет, что в буфере поместится n инстансов, при необходимости растя его
func (b *InstanceBuffer) reserve(n int) error {
	if n <= b.capacity {
		return nil
	}
	if !b.opts.AutoGrow {
		return fmt.Errorf("%w: need %d, capacity %d", ErrCapacityExceeded, n, b.capacity)
	}

	next := b.capacity
	for next < n {
		next *= 2
	}
	if next > b.opts.MaxCapacity {
		next = b.opts.MaxCapacity
	}
	if n > next {
		return fmt.Errorf("%w: need %d, max capacity %d", ErrCapacityExceeded, n, b.opts.MaxCapacity)
	}
	b.capacity = next
	return nil
}

// CanInsert проверяет, примет ли буфер ещё один инстанс
func (b *InstanceBuffer) CanInsert() error {
	return b.reserve(len(b.instances) + 1)
}

// Insert добавляет инстанс для ячейки. Для уже присутствующей ячейки
// обновляет цвет на месте.
func (b *InstanceBuffer) Insert(cell grid.Cell, color world.Color) (int, error) {
	if slot, ok := b.slots[cell]; ok {
		b.instances[slot].Color = color
		b.sink.Upsert(slot, b.instances[slot])
		return slot, nil
	}
	if err := b.reserve(len(b.instances) + 1); err != nil {
		return -1, err
	}

	slot := len(b.instances)
	inst := NewInstance(cell, color)
	b.instances = append(b.instances, inst)
	b.cells = append(b.cells, cell)
	b.slots[cell] = slot
	b.sink.Upsert(slot, inst)
	return slot, nil
}

// Remove удаляет инстанс ячейки. Последний инстанс переносится в освободившийся
// слот, приёмник получает Upsert перенесённого и Remove последнего слота.
func (b *InstanceBuffer) Remove(cell grid.Cell) bool {
	slot, ok := b.slots[cell]
	if !ok {
		return false
	}

	last := len(b.instances) - 1
	if slot != last {
		moved := b.cells[last]
		b.instances[slot] = b.instances[last]
		b.cells[slot] = moved
		b.slots[moved] = slot
		b.sink.Upsert(slot, b.instances[slot])
	}

	b.instances = b.instances[:last]
	b.cells = b.cells[:last]
	delete(b.slots, cell)
	b.sink.Remove(last)
	return true
}

// Recolor меняет цвет инстанса ячейки
func (b *InstanceBuffer) Recolor(cell grid.Cell, color world.Color) bool {
	slot, ok := b.slots[cell]
	if !ok {
		return false
	}
	b.instances[slot].Color = color
	b.sink.Upsert(slot, b.instances[slot])
	return true
}

// Reset очищает буфер. Ёмкость, выросшая за счёт AutoGrow, сохраняется.
func (b *InstanceBuffer) Reset() {
	b.instances = b.instances[:0]
	b.cells = b.cells[:0]
	b.slots = make(map[grid.Cell]int, b.capacity)
	b.sink.Reset()
}

// Rebuild заменяет содержимое буфера воксели. Если они не помещаются,
// буфер не меняется.
func (b *InstanceBuffer) Rebuild(voxels []world.Voxel) error {
	if err := b.reserve(len(voxels)); err != nil {
		return err
	}
	b.Reset()
	for _, v := range voxels {
		if _, err := b.Insert(v.Cell, v.Color); err != nil {
			return err
		}
	}
	return nil
}

// Replay отправляет в приёмник полный снимок буфера: Reset и Upsert каждого слота
func (b *InstanceBuffer) Replay(sink Sink) {
	sink.Reset()
	for slot, inst := range b.instances {
		sink.Upsert(slot, inst)
	}
}

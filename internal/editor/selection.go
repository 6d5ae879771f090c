package editor

import (
	"context"
	"math"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/vec"
)

// Rect прямоугольник выделения: два угла в NDC в любом порядке
type Rect struct {
	A vec.Vec2Float `json:"a"`
	B vec.Vec2Float `json:"b"`
}

// Normalized возвращает нижний левый и верхний правый углы
func (r Rect) Normalized() (lo, hi vec.Vec2Float) {
	lo = vec.Vec2Float{X: math.Min(r.A.X, r.B.X), Y: math.Min(r.A.Y, r.B.Y)}
	hi = vec.Vec2Float{X: math.Max(r.A.X, r.B.X), Y: math.Max(r.A.Y, r.B.Y)}
	return lo, hi
}

// Visible обрезает прямоугольник по экрану [-1, 1]. ok == false, если
// пересечения с экраном нет или угол не является конечным числом.
func (r Rect) Visible() (lo, hi vec.Vec2Float, ok bool) {
	if !r.A.IsFinite() || !r.B.IsFinite() {
		return lo, hi, false
	}
	lo, hi = r.Normalized()
	if lo.X > 1 || lo.Y > 1 || hi.X < -1 || hi.Y < -1 {
		return lo, hi, false
	}
	lo = vec.Vec2Float{X: math.Max(lo.X, -1), Y: math.Max(lo.Y, -1)}
	hi = vec.Vec2Float{X: math.Min(hi.X, 1), Y: math.Min(hi.Y, 1)}
	return lo, hi, true
}

type selectionDrag struct {
	rect Rect
}

// BeginSelection начинает жест выделения из текущей позиции указателя
func (s *Session) BeginSelection() {
	s.drag = &selectionDrag{rect: Rect{A: s.pointer, B: s.pointer}}
}

// Selection возвращает текущий прямоугольник выделения
func (s *Session) Selection() (Rect, bool) {
	if s.drag == nil {
		return Rect{}, false
	}
	return s.drag.rect, true
}

// CancelSelection прерывает жест без перекраски
func (s *Session) CancelSelection() {
	s.drag = nil
}

// EndSelection завершает жест и перекрашивает попавшие в прямоугольник воксели
func (s *Session) EndSelection(ctx context.Context) ([]grid.Cell, error) {
	if s.drag == nil {
		return nil, ErrNoSelection
	}
	rect := s.drag.rect
	s.drag = nil
	return s.SelectRegion(ctx, rect), nil
}

// SelectRegion выбирает воксели под прямоугольником и красит их текущим цветом.
// Возвращает реально перекрашенные ячейки.
func (s *Session) SelectRegion(ctx context.Context, rect Rect) []grid.Cell {
	cells := s.PickRegion(rect)
	if len(cells) == 0 {
		return nil
	}

	color := s.CurrentColor()
	changed := s.store.Recolor(cells, color)
	for _, cell := range changed {
		s.buffer.Recolor(cell, color)
	}

	s.metrics.recolor(len(changed))
	s.log.Debug("Session %s: перекрашено %d вокселей в %s", s.id, len(changed), color)
	s.publish(ctx, EventVoxelsRecolored, RecolorEvent{SessionID: s.id, Positions: centers(changed), Color: color})
	return changed
}

// PickRegion сэмплирует прямоугольник регулярной сеткой лучей с шагом
// SelectionStep и собирает различные воксели из ближайших попаданий.
// Порядок результата соответствует порядку обхода. Часть прямоугольника
// за пределами экрана не сэмплируется.
func (s *Session) PickRegion(rect Rect) []grid.Cell {
	lo, hi, ok := rect.Visible()
	if !ok {
		return nil
	}
	step := s.cfg.SelectionStep

	nx := int(math.Floor((hi.X-lo.X)/step)) + 1
	ny := int(math.Floor((hi.Y-lo.Y)/step)) + 1

	seen := make(map[grid.Cell]struct{})
	var cells []grid.Cell

	for iy := 0; iy < ny; iy++ {
		y := lo.Y + float64(iy)*step
		for ix := 0; ix < nx; ix++ {
			x := lo.X + float64(ix)*step
			hit, ok := s.castPointer(vec.Vec2Float{X: x, Y: y}, false)
			if !ok || hit.Kind != picking.TargetVoxel {
				continue
			}
			if _, dup := seen[hit.Cell]; dup {
				continue
			}
			seen[hit.Cell] = struct{}{}
			cells = append(cells, hit.Cell)
		}
	}
	return cells
}

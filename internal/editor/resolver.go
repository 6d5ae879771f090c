package editor

import (
	"context"
	"fmt"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/logging"
	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
)

// pickSet набор объектов для луча. Превью участвует только видимым
// и только в покадровом пересчёте.
func (s *Session) pickSet(withShadow bool) picking.PickSet {
	set := picking.PickSet{
		GroundSize: s.cfg.GridSize,
		Voxels:     s.store,
	}
	if withShadow && s.state != NoTarget && s.focused {
		shadow := s.candidate
		set.Shadow = &shadow
	}
	return set
}

// castPointer бросает луч из камеры через точку NDC
func (s *Session) castPointer(ndc vec.Vec2Float, withShadow bool) (picking.Hit, bool) {
	ray, err := s.camera.RayFromNDC(ndc)
	if err != nil {
		return picking.Hit{}, false
	}
	return picking.Nearest(s.caster.Cast(ray, s.pickSet(withShadow)))
}

// Frame пересчитывает кандидата по последней позиции указателя.
// Вызывается каждым тиком цикла сессии.
func (s *Session) Frame() {
	s.metrics.frame()

	hit, ok := s.castPointer(s.pointer, true)
	switch {
	case !ok:
		s.state = NoTarget
	case hit.Kind == picking.TargetShadow:
		// луч упёрся в само превью: кадр пропускается, кандидат прежний
	case hit.Kind == picking.TargetGround:
		s.state = TargetOnPlane
		s.candidate = s.bounds.Clamp(grid.WorldToCell(hit.Point, hit.Normal))
	case hit.Kind == picking.TargetVoxel:
		s.state = TargetOnVoxel
		s.candidate = s.bounds.Clamp(grid.WorldToCell(hit.Point, hit.Normal))
	}

	s.syncShadow()
}

// PointerMove обновляет позицию указателя (NDC) и сразу пересчитывает кадр.
// Во время выделения двигает второй угол прямоугольника.
func (s *Session) PointerMove(ndc vec.Vec2Float) {
	if !ndc.IsFinite() {
		return
	}
	s.pointer = ndc
	if s.drag != nil {
		s.drag.rect.B = ndc
	}
	s.Frame()
}

// PointerMovePixels переводит координаты окна в NDC
func (s *Session) PointerMovePixels(px, py, width, height float64) {
	s.PointerMove(vec.PixelsToNDC(px, py, width, height))
}

// SetFocus отражает фокус окна. Потеря фокуса прячет превью, не трогая состояние.
func (s *Session) SetFocus(focused bool) {
	s.focused = focused
	s.syncShadow()
}

// PrimaryPress размещает воксель текущего цвета в ячейке-кандидате.
// Возвращает false без ошибки, если цели нет или ячейка занята,
// и render.ErrCapacityExceeded, если сцена заполнена.
func (s *Session) PrimaryPress(ctx context.Context) (grid.Cell, bool, error) {
	if s.state == NoTarget {
		s.metrics.reject("no_target")
		return grid.Cell{}, false, nil
	}

	cell := s.candidate
	if s.store.Has(cell) {
		s.metrics.reject("occupied")
		s.log.Debug("Session %s: ячейка %s занята", s.id, cell)
		return cell, false, nil
	}
	if err := s.buffer.CanInsert(); err != nil {
		s.metrics.reject("capacity")
		s.log.Warn("Session %s: сцена заполнена (%d)", s.id, s.buffer.Len())
		return cell, false, err
	}

	color := s.CurrentColor()
	s.store.Place(cell, color)
	if _, err := s.buffer.Insert(cell, color); err != nil {
		s.store.Remove(cell)
		return cell, false, err
	}

	s.metrics.place()
	p := cell.Center()
	logging.LogPlacement(s.id, p.X, p.Y, p.Z, uint32(color))
	s.publish(ctx, EventVoxelPlaced, VoxelEvent{SessionID: s.id, Position: p, Color: color})
	s.Frame()
	return cell, true, nil
}

// SecondaryPress удаляет воксель под указателем. Учитывается только ближайшее
// попадание: если это не воксель, ничего не происходит.
func (s *Session) SecondaryPress(ctx context.Context) (grid.Cell, bool) {
	hit, ok := s.castPointer(s.pointer, false)
	if !ok || hit.Kind != picking.TargetVoxel {
		return grid.Cell{}, false
	}
	return s.RemoveAt(ctx, hit.Cell)
}

// RemoveAt удаляет воксель в ячейке. Отсутствующая ячейка — no-op.
func (s *Session) RemoveAt(ctx context.Context, cell grid.Cell) (grid.Cell, bool) {
	color, ok := s.store.Get(cell)
	if !ok {
		return cell, false
	}
	s.store.Remove(cell)
	s.buffer.Remove(cell)

	s.metrics.remove(1)
	p := cell.Center()
	logging.LogRemoval(s.id, p.X, p.Y, p.Z)
	s.publish(ctx, EventVoxelRemoved, VoxelEvent{SessionID: s.id, Position: p, Color: color})
	s.Frame()
	return cell, true
}

// CycleColor сдвигает индекс цвета с оборачиванием по длине палитры.
// Меняется только цвет превью.
func (s *Session) CycleColor(delta int) world.Color {
	s.colorIndex = s.palette.Wrap(s.colorIndex + delta)
	s.syncShadow()
	return s.CurrentColor()
}

// SelectColor выбирает цвет палитры по индексу
func (s *Session) SelectColor(index int) error {
	if index < 0 || index >= len(s.palette) {
		return fmt.Errorf("%w: %d of %d", ErrColorIndex, index, len(s.palette))
	}
	s.colorIndex = index
	s.syncShadow()
	return nil
}

// KeyDown обрабатывает клавиши цвета: ArrowLeft и ArrowRight.
// Возвращает false для прочих клавиш.
func (s *Session) KeyDown(key string) bool {
	switch key {
	case "ArrowLeft":
		s.CycleColor(-1)
	case "ArrowRight":
		s.CycleColor(1)
	default:
		return false
	}
	return true
}

// SetCamera меняет камеру и пересчитывает кадр
func (s *Session) SetCamera(cam picking.Camera) error {
	if err := ValidateCamera(cam); err != nil {
		return err
	}
	s.camera = cam
	s.Frame()
	return nil
}

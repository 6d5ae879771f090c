package world

import (
	"fmt"
	"sort"

	"github.com/annel0/voxel-editor/internal/grid"
)

// VoxelStore авторитетное множество размещённых вокселей: ячейка -> цвет.
// Ключи уникальны по построению. Хранилище принадлежит одной сессии редактора
// и не защищено мьютексом: все мутации идут из цикла сессии.
type VoxelStore struct {
	voxels map[grid.Cell]Color
}

// NewVoxelStore создаёт пустое хранилище
func NewVoxelStore() *VoxelStore {
	return &VoxelStore{voxels: make(map[grid.Cell]Color)}
}

// Len возвращает количество вокселей
func (s *VoxelStore) Len() int {
	return len(s.voxels)
}

// Has проверяет занятость ячейки
func (s *VoxelStore) Has(cell grid.Cell) bool {
	_, ok := s.voxels[cell]
	return ok
}

// Get возвращает цвет вокселя в ячейке
func (s *VoxelStore) Get(cell grid.Cell) (Color, bool) {
	c, ok := s.voxels[cell]
	return c, ok
}

// Place вставляет воксель. Занятая ячейка не перезаписывается: возвращается false.
func (s *VoxelStore) Place(cell grid.Cell, color Color) bool {
	if _, occupied := s.voxels[cell]; occupied {
		return false
	}
	s.voxels[cell] = color & MaxColor
	return true
}

// Remove удаляет воксель. Отсутствующая ячейка — no-op, возвращается false.
func (s *VoxelStore) Remove(cell grid.Cell) bool {
	if _, ok := s.voxels[cell]; !ok {
		return false
	}
	delete(s.voxels, cell)
	return true
}

// Clear удаляет все воксели
func (s *VoxelStore) Clear() {
	s.voxels = make(map[grid.Cell]Color)
}

// Recolor перекрашивает существующие воксели. Отсутствующие ячейки пропускаются.
// Возвращает список реально перекрашенных ячеек.
func (s *VoxelStore) Recolor(cells []grid.Cell, color Color) []grid.Cell {
	changed := make([]grid.Cell, 0, len(cells))
	for _, cell := range cells {
		if _, ok := s.voxels[cell]; ok {
			s.voxels[cell] = color & MaxColor
			changed = append(changed, cell)
		}
	}
	return changed
}

// EachCell обходит занятые ячейки в произвольном порядке без копирования.
// fn не должна изменять хранилище; false останавливает обход.
func (s *VoxelStore) EachCell(fn func(cell grid.Cell) bool) {
	for cell := range s.voxels {
		if !fn(cell) {
			return
		}
	}
}

// Cells возвращает копию ключей в детерминированном порядке (Y, Z, X).
// Копию можно безопасно использовать для последующих мутаций хранилища.
func (s *VoxelStore) Cells() []grid.Cell {
	cells := make([]grid.Cell, 0, len(s.voxels))
	for cell := range s.voxels {
		cells = append(cells, cell)
	}
	sortCells(cells)
	return cells
}

// Voxels возвращает все воксели в детерминированном порядке
func (s *VoxelStore) Voxels() []Voxel {
	cells := s.Cells()
	out := make([]Voxel, len(cells))
	for i, cell := range cells {
		out[i] = Voxel{Cell: cell, Color: s.voxels[cell]}
	}
	return out
}

// Snapshot возвращает экспортируемое представление.
// Порядок стабилен: сортировка по Y, затем Z, затем X.
func (s *VoxelStore) Snapshot() []Record {
	voxels := s.Voxels()
	records := make([]Record, len(voxels))
	for i, v := range voxels {
		records[i] = v.Record()
	}
	return records
}

// ValidateRecords проверяет записи без изменения хранилища и возвращает
// соответствующие им ячейки
func ValidateRecords(records []Record) ([]Voxel, error) {
	voxels := make([]Voxel, 0, len(records))
	seen := make(map[grid.Cell]int, len(records))

	for i, rec := range records {
		cell, err := grid.CellFromCenter(rec.Position)
		if err != nil {
			return nil, &MalformedRecordError{Index: i, Reason: err.Error()}
		}
		if !rec.Color.Valid() {
			return nil, &MalformedRecordError{Index: i, Reason: fmt.Sprintf("color %d exceeds 24 bits", uint32(rec.Color))}
		}
		if first, dup := seen[cell]; dup {
			return nil, &MalformedRecordError{Index: i, Reason: fmt.Sprintf("duplicates position of record %d", first)}
		}
		seen[cell] = i
		voxels = append(voxels, Voxel{Cell: cell, Color: rec.Color})
	}
	return voxels, nil
}

// Restore заменяет содержимое хранилища записями. Позиции не привязываются
// к сетке заново: они обязаны уже лежать на решётке. Проверка выполняется
// до изменения, поэтому при ошибке хранилище остаётся нетронутым.
func (s *VoxelStore) Restore(records []Record) error {
	voxels, err := ValidateRecords(records)
	if err != nil {
		return err
	}

	next := make(map[grid.Cell]Color, len(voxels))
	for _, v := range voxels {
		next[v.Cell] = v.Color
	}
	s.voxels = next
	return nil
}

func sortCells(cells []grid.Cell) {
	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i], cells[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		return a.X < b.X
	})
}

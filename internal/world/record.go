package world

import (
	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/vec"
)

// Record одна запись сохранённой раскладки:
// {"position":{"x":..,"y":..,"z":..},"color":..}
type Record struct {
	Position vec.Vec3Float `json:"position"`
	Color    Color         `json:"color"`
}

// Voxel размещённый воксель
type Voxel struct {
	Cell  grid.Cell
	Color Color
}

// Record возвращает представление вокселя для экспорта
func (v Voxel) Record() Record {
	return Record{Position: v.Cell.Center(), Color: v.Color}
}

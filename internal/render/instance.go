// Package render держит инстансное представление вокселей для отрисовки
// и синхронизирует его с хранилищем через Sink.
package render

import (
	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/go-gl/mathgl/mgl64"
)

// Instance один отрисовываемый куб: матрица переноса в центр ячейки и цвет
type Instance struct {
	Position vec.Vec3Float `json:"position"`
	Color    world.Color   `json:"color"`
	Matrix   mgl64.Mat4    `json:"matrix"`
}

// NewInstance строит инстанс для ячейки
func NewInstance(cell grid.Cell, color world.Color) Instance {
	p := cell.Center()
	return Instance{
		Position: p,
		Color:    color,
		Matrix:   mgl64.Translate3D(p.X, p.Y, p.Z),
	}
}

// Package grid отвечает за адресацию ячеек воксельной сетки:
// перевод точек мира в ячейки решётки полуцелых центров и обратно.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/voxel-editor/internal/vec"
)

// Допуск при проверке принадлежности точки решётке полуцелых центров
const latticeEpsilon = 1e-6

var (
	// ErrOffLattice точка не лежит на решётке (i+0.5, j+0.5, k+0.5)
	ErrOffLattice = errors.New("position is not on the half-integer lattice")
	// ErrNonFinite координата NaN или бесконечность
	ErrNonFinite = errors.New("position has non-finite component")
)

// Cell целочисленный индекс ячейки. Центр ячейки в мире — (X+0.5, Y+0.5, Z+0.5),
// поэтому любой Cell по построению лежит на решётке полуцелых центров.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Center возвращает мировые координаты центра ячейки
func (c Cell) Center() vec.Vec3Float {
	return vec.Vec3Float{
		X: float64(c.X) + 0.5,
		Y: float64(c.Y) + 0.5,
		Z: float64(c.Z) + 0.5,
	}
}

// Neighbor возвращает соседнюю ячейку в направлении целочисленной нормали грани
func (c Cell) Neighbor(face vec.Vec3) Cell {
	return Cell{X: c.X + face.X, Y: c.Y + face.Y, Z: c.Z + face.Z}
}

// Min возвращает минимальный угол куба ячейки
func (c Cell) Min() vec.Vec3Float {
	return vec.Vec3Float{X: float64(c.X), Y: float64(c.Y), Z: float64(c.Z)}
}

// Max возвращает максимальный угол куба ячейки
func (c Cell) Max() vec.Vec3Float {
	return c.Min().AddScalar(1)
}

func (c Cell) String() string {
	p := c.Center()
	return fmt.Sprintf("(%g,%g,%g)", p.X, p.Y, p.Z)
}

// WorldToCell сдвигает точку попадания на полклетки вдоль внешней нормали
// поверхности и округляет вниз по каждой оси. Результат — пустая ячейка,
// прилегающая к задетой грани, а не сама задетая ячейка.
func WorldToCell(point, surfaceNormal vec.Vec3Float) Cell {
	p := point.AddScaled(surfaceNormal, 0.5).Floor()
	return Cell{X: int(p.X), Y: int(p.Y), Z: int(p.Z)}
}

// CellFromCenter обратная операция к Center. Позиция должна лежать на решётке,
// повторной привязки к сетке не делается.
func CellFromCenter(p vec.Vec3Float) (Cell, error) {
	if !p.IsFinite() {
		return Cell{}, ErrNonFinite
	}

	var idx [3]int
	for axis := 0; axis < 3; axis++ {
		shifted := p.Axis(axis) - 0.5
		rounded := math.Round(shifted)
		if math.Abs(shifted-rounded) > latticeEpsilon {
			return Cell{}, fmt.Errorf("%w: %v", ErrOffLattice, p)
		}
		idx[axis] = int(rounded)
	}
	return Cell{X: idx[0], Y: idx[1], Z: idx[2]}, nil
}

// Package picking реализует луч из камеры через указатель и поиск пересечений
// с плоскостью земли и кубами вокселей.
package picking

import (
	"math"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/vec"
)

const eps = 1e-9

// Ray луч с началом Origin и нормализованным направлением Dir
type Ray struct {
	Origin vec.Vec3Float
	Dir    vec.Vec3Float
}

// NewRay создаёт луч, нормализуя направление
func NewRay(origin, dir vec.Vec3Float) Ray {
	return Ray{Origin: origin, Dir: dir.Normalized()}
}

// At возвращает точку луча на расстоянии t
func (r Ray) At(t float64) vec.Vec3Float {
	return r.Origin.AddScaled(r.Dir, t)
}

// rayCell пересекает луч с единичным кубом ячейки (метод слэбов).
// Возвращает расстояние до точки входа и целочисленную нормаль грани входа.
// Если начало луча внутри куба, пересечения нет: грани видны только снаружи.
func rayCell(r Ray, cell grid.Cell) (float64, vec.Vec3, bool) {
	minC := cell.Min()
	maxC := cell.Max()

	tmin := math.Inf(-1)
	tmax := math.Inf(1)
	enterAxis := -1

	for axis := 0; axis < 3; axis++ {
		o := r.Origin.Axis(axis)
		d := r.Dir.Axis(axis)
		lo := minC.Axis(axis)
		hi := maxC.Axis(axis)

		if math.Abs(d) < eps {
			if o < lo || o > hi {
				return 0, vec.Vec3{}, false
			}
			continue
		}

		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
			enterAxis = axis
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, vec.Vec3{}, false
		}
	}

	if enterAxis < 0 || tmin <= eps || tmax < 0 {
		return 0, vec.Vec3{}, false
	}

	var face vec.Vec3
	sign := 1
	if r.Dir.Axis(enterAxis) > 0 {
		sign = -1
	}
	switch enterAxis {
	case 0:
		face.X = sign
	case 1:
		face.Y = sign
	case 2:
		face.Z = sign
	}
	return tmin, face, true
}

// rayGround пересекает луч с двусторонней плоскостью y=0 размером size×size.
// Нормаль смотрит в сторону начала луча.
func rayGround(r Ray, size int) (float64, vec.Vec3Float, bool) {
	if size <= 0 || math.Abs(r.Dir.Y) < eps {
		return 0, vec.Vec3Float{}, false
	}
	t := -r.Origin.Y / r.Dir.Y
	if t <= eps {
		return 0, vec.Vec3Float{}, false
	}

	p := r.At(t)
	half := float64(size) / 2
	if p.X < -half || p.X > half || p.Z < -half || p.Z > half {
		return 0, vec.Vec3Float{}, false
	}

	normal := vec.Vec3Float{Y: 1}
	if r.Origin.Y < 0 {
		normal.Y = -1
	}
	return t, normal, true
}

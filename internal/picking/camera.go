package picking

import (
	"errors"

	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerateCamera матрица вида-проекции необратима
var ErrDegenerateCamera = errors.New("camera view-projection is not invertible")

// Camera перспективная камера, смотрящая из Position в Target
type Camera struct {
	Position vec.Vec3Float `json:"position" yaml:"position"`
	Target   vec.Vec3Float `json:"target" yaml:"target"`
	Up       vec.Vec3Float `json:"up" yaml:"up"`
	FovY     float64       `json:"fov_y" yaml:"fov_y"` // в градусах
	Aspect   float64       `json:"aspect" yaml:"aspect"`
	Near     float64       `json:"near" yaml:"near"`
	Far      float64       `json:"far" yaml:"far"`
}

// DefaultCamera камера редактора по умолчанию
func DefaultCamera() Camera {
	return Camera{
		Position: vec.Vec3Float{X: 0, Y: 10, Z: 15},
		Up:       vec.Vec3Float{Y: 1},
		FovY:     75,
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      100,
	}
}

func toMgl(v vec.Vec3Float) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// ViewProjection возвращает произведение матриц проекции и вида
func (c Camera) ViewProjection() mgl64.Mat4 {
	up := c.Up
	if up.Length() == 0 {
		up = vec.Vec3Float{Y: 1}
	}
	proj := mgl64.Perspective(mgl64.DegToRad(c.FovY), c.Aspect, c.Near, c.Far)
	view := mgl64.LookAtV(toMgl(c.Position), toMgl(c.Target), toMgl(up))
	return proj.Mul4(view)
}

// unproject переводит точку NDC (x, y, z ∈ [-1,1]) в мировые координаты
func unproject(inv mgl64.Mat4, x, y, z float64) vec.Vec3Float {
	p := inv.Mul4x1(mgl64.Vec4{x, y, z, 1})
	if p[3] != 0 {
		p = p.Mul(1 / p[3])
	}
	return vec.Vec3Float{X: p[0], Y: p[1], Z: p[2]}
}

// RayFromNDC строит луч из позиции камеры через точку экрана в NDC
func (c Camera) RayFromNDC(ndc vec.Vec2Float) (Ray, error) {
	vp := c.ViewProjection()
	if vp.Det() == 0 {
		return Ray{}, ErrDegenerateCamera
	}
	inv := vp.Inv()

	near := unproject(inv, ndc.X, ndc.Y, -1)
	far := unproject(inv, ndc.X, ndc.Y, 1)
	dir := far.Sub(near)
	if dir.Length() == 0 || !dir.IsFinite() {
		return Ray{}, ErrDegenerateCamera
	}
	return NewRay(c.Position, dir), nil
}

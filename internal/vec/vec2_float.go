package vec

import "math"

// Vec2Float представляет 2D координаты с плавающей точкой
// (в редакторе — нормализованные координаты устройства, NDC)
type Vec2Float struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite проверяет, что обе компоненты конечны
func (v Vec2Float) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// PixelsToNDC переводит координаты указателя в пикселях в NDC:
// x ∈ [-1,1] слева направо, y ∈ [-1,1] снизу вверх
func PixelsToNDC(px, py, width, height float64) Vec2Float {
	if width <= 0 || height <= 0 {
		return Vec2Float{}
	}
	return Vec2Float{
		X: (px/width)*2 - 1,
		Y: -(py/height)*2 + 1,
	}
}

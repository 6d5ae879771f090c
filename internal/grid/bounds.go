package grid

// Bounds описывает конечную по X/Z и неограниченную сверху по Y сетку
// размером GridSize×GridSize, центрированную в начале координат.
type Bounds struct {
	GridSize int
}

// MinXZ минимальный индекс ячейки по X и Z.
// Центр ячейки не меньше -GridSize/2+0.5.
func (b Bounds) MinXZ() int {
	return -(b.GridSize / 2)
}

// MaxXZ максимальный индекс ячейки по X и Z.
// Центр ячейки не больше GridSize/2-0.5. Для нечётного размера крайние
// полуцелые центры лежат внутри интервала, поэтому одна ячейка теряется.
func (b Bounds) MaxXZ() int {
	maxIdx := b.GridSize/2 - 1
	if maxIdx < b.MinXZ() {
		maxIdx = b.MinXZ()
	}
	return maxIdx
}

// Contains проверяет, что ячейка лежит внутри сетки и не ниже плоскости земли
func (b Bounds) Contains(c Cell) bool {
	return c.X >= b.MinXZ() && c.X <= b.MaxXZ() &&
		c.Z >= b.MinXZ() && c.Z <= b.MaxXZ() &&
		c.Y >= 0
}

// Clamp зажимает ячейку в границы сетки
func (b Bounds) Clamp(c Cell) Cell {
	return Cell{
		X: clampInt(c.X, b.MinXZ(), b.MaxXZ()),
		Y: maxInt(c.Y, 0),
		Z: clampInt(c.Z, b.MinXZ(), b.MaxXZ()),
	}
}

// ClampToBounds зажимает X и Z в [-gridSize/2+0.5, gridSize/2-0.5], Y — не ниже 0.5.
// Чистая функция, определена для любого входа.
func ClampToBounds(c Cell, gridSize int) Cell {
	return Bounds{GridSize: gridSize}.Clamp(c)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package picking

import (
	"sort"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/vec"
)

// TargetKind тип объекта, в который попал луч
type TargetKind int

const (
	TargetGround TargetKind = iota
	TargetVoxel
	TargetShadow
)

func (k TargetKind) String() string {
	switch k {
	case TargetGround:
		return "ground"
	case TargetVoxel:
		return "voxel"
	case TargetShadow:
		return "shadow"
	default:
		return "unknown"
	}
}

// Hit одно пересечение луча
type Hit struct {
	Kind     TargetKind
	Point    vec.Vec3Float
	Normal   vec.Vec3Float
	Distance float64
	// Cell ячейка задетого вокселя или превью; для земли не используется
	Cell grid.Cell
}

// VoxelSet источник кубов вокселей для выбора
type VoxelSet interface {
	EachCell(fn func(cell grid.Cell) bool)
}

// PickSet набор объектов, против которых бросается луч
type PickSet struct {
	// GroundSize размер плоскости земли; 0 отключает плоскость
	GroundSize int
	Voxels     VoxelSet
	// Shadow ячейка превью, если оно видимо
	Shadow *grid.Cell
}

// Caster бросает луч и возвращает попадания, отсортированные от ближнего к дальнему
type Caster interface {
	Cast(r Ray, set PickSet) []Hit
}

// BoxCaster перебирает все кубы набора (O(n) на луч)
type BoxCaster struct{}

// NewBoxCaster создаёт перебирающий кастер
func NewBoxCaster() *BoxCaster {
	return &BoxCaster{}
}

// Cast реализует Caster. При равных расстояниях воксель идёт раньше превью,
// превью раньше земли.
func (bc *BoxCaster) Cast(r Ray, set PickSet) []Hit {
	hits := make([]Hit, 0, 4)

	if set.Voxels != nil {
		set.Voxels.EachCell(func(cell grid.Cell) bool {
			if t, face, ok := rayCell(r, cell); ok {
				hits = append(hits, Hit{
					Kind:     TargetVoxel,
					Point:    r.At(t),
					Normal:   face.ToFloat(),
					Distance: t,
					Cell:     cell,
				})
			}
			return true
		})
	}

	if set.Shadow != nil {
		if t, face, ok := rayCell(r, *set.Shadow); ok {
			hits = append(hits, Hit{
				Kind:     TargetShadow,
				Point:    r.At(t),
				Normal:   face.ToFloat(),
				Distance: t,
				Cell:     *set.Shadow,
			})
		}
	}

	if t, normal, ok := rayGround(r, set.GroundSize); ok {
		hits = append(hits, Hit{
			Kind:     TargetGround,
			Point:    r.At(t),
			Normal:   normal,
			Distance: t,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}

// Nearest возвращает ближайшее попадание
func Nearest(hits []Hit) (Hit, bool) {
	if len(hits) == 0 {
		return Hit{}, false
	}
	return hits[0], true
}

// CellSlice простой VoxelSet поверх среза ячеек
type CellSlice []grid.Cell

// EachCell реализует VoxelSet
func (cs CellSlice) EachCell(fn func(cell grid.Cell) bool) {
	for _, c := range cs {
		if !fn(c) {
			return
		}
	}
}

package layout

import (
	"errors"
	"io"

	"github.com/annel0/voxel-editor/internal/grid"
	"github.com/annel0/voxel-editor/internal/vec"
	"github.com/annel0/voxel-editor/internal/world"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ErrEmptyLayout нечего экспортировать
var ErrEmptyLayout = errors.New("layout is empty")

// Mesh треугольная сетка видимых граней вокселей
type Mesh struct {
	Positions [][3]float32
	Normals   [][3]float32
	Colors    [][4]float32
	Indices   []uint32
}

type cubeFace struct {
	normal  vec.Vec3
	corners [4][3]float32
}

// Углы граней против часовой стрелки при взгляде снаружи
var cubeFaces = [6]cubeFace{
	{normal: vec.Vec3{X: 1}, corners: [4][3]float32{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{normal: vec.Vec3{X: -1}, corners: [4][3]float32{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{normal: vec.Vec3{Y: 1}, corners: [4][3]float32{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{normal: vec.Vec3{Y: -1}, corners: [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{normal: vec.Vec3{Z: 1}, corners: [4][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{normal: vec.Vec3{Z: -1}, corners: [4][3]float32{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
}

// BuildMesh строит сетку, пропуская грани между соседними вокселями
func BuildMesh(voxels []world.Voxel) Mesh {
	occupied := make(map[grid.Cell]struct{}, len(voxels))
	for _, v := range voxels {
		occupied[v.Cell] = struct{}{}
	}

	var m Mesh
	for _, v := range voxels {
		rgba := v.Color.RGBA()
		for _, face := range cubeFaces {
			if _, hidden := occupied[v.Cell.Neighbor(face.normal)]; hidden {
				continue
			}

			base := uint32(len(m.Positions))
			n := [3]float32{float32(face.normal.X), float32(face.normal.Y), float32(face.normal.Z)}
			for _, c := range face.corners {
				m.Positions = append(m.Positions, [3]float32{
					float32(v.Cell.X) + c[0],
					float32(v.Cell.Y) + c[1],
					float32(v.Cell.Z) + c[2],
				})
				m.Normals = append(m.Normals, n)
				m.Colors = append(m.Colors, rgba)
			}
			m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
		}
	}
	return m
}

// BuildDocument собирает glTF-документ из вокселей
func BuildDocument(voxels []world.Voxel) (*gltf.Document, error) {
	if len(voxels) == 0 {
		return nil, ErrEmptyLayout
	}
	mesh := BuildMesh(voxels)

	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxel-editor"

	posAccessor := modeler.WritePosition(doc, mesh.Positions)
	normalAccessor := modeler.WriteNormal(doc, mesh.Normals)
	colorAccessor := modeler.WriteColor(doc, mesh.Colors)
	indicesAccessor := modeler.WriteIndices(doc, mesh.Indices)

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.NORMAL:   uint32(normalAccessor),
			gltf.COLOR_0:  uint32(colorAccessor),
		},
		Indices:  gltf.Index(uint32(indicesAccessor)),
		Material: gltf.Index(0),
	}

	doc.Materials = []*gltf.Material{{
		Name:      "voxel",
		AlphaMode: gltf.AlphaOpaque,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	}}
	doc.Meshes = []*gltf.Mesh{{Name: "Voxels", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "Layout", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))
	return doc, nil
}

// ExportGLB пишет раскладку в w как бинарный glTF
func ExportGLB(w io.Writer, voxels []world.Voxel) error {
	doc, err := BuildDocument(voxels)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(doc)
}

// RecordsToVoxels переводит проверенные записи в воксели
func RecordsToVoxels(records []world.Record) ([]world.Voxel, error) {
	return world.ValidateRecords(records)
}

package layout

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/annel0/voxel-editor/internal/world"
	"github.com/cespare/xxhash/v2"
)

// Digest хеш содержимого раскладки, не зависящий от порядка записей
func Digest(records []world.Record) uint64 {
	sorted := make([]world.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Position, sorted[j].Position
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return sorted[i].Color < sorted[j].Color
	})

	h := xxhash.New()
	var buf [28]byte
	for _, r := range sorted {
		binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(r.Position.X))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(r.Position.Y))
		binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(r.Position.Z))
		binary.LittleEndian.PutUint32(buf[24:], uint32(r.Color))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// ETag строковое представление Digest для HTTP
func ETag(records []world.Record) string {
	return fmt.Sprintf("\"%016x\"", Digest(records))
}

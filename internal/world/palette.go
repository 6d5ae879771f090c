package world

import (
	"errors"
	"fmt"
)

// ErrEmptyPalette палитра без цветов
var ErrEmptyPalette = errors.New("palette is empty")

// Palette фиксированный набор цветов, из которого выбирается текущий цвет
type Palette []Color

// DefaultPalette стандартная палитра редактора
var DefaultPalette = Palette{
	0xDF1F1F,
	0xDFAF1F,
	0x80DF1F,
	0x1FDF50,
	0x1FDFDF,
	0x1F4FDF,
	0x7F1FDF,
	0xDF1FAF,
	0xEFEFEF,
	0x303030,
}

// Validate проверяет палитру
func (p Palette) Validate() error {
	if len(p) == 0 {
		return ErrEmptyPalette
	}
	for _, c := range p {
		if !c.Valid() {
			return fmt.Errorf("palette color %d exceeds 24 bits", uint32(c))
		}
	}
	return nil
}

// Wrap приводит индекс к диапазону палитры по модулю её длины
// (в обе стороны: -1 превращается в последний индекс)
func (p Palette) Wrap(index int) int {
	n := len(p)
	if n == 0 {
		return 0
	}
	return ((index % n) + n) % n
}

// At возвращает цвет по индексу с оборачиванием
func (p Palette) At(index int) Color {
	if len(p) == 0 {
		return 0
	}
	return p[p.Wrap(index)]
}

package world

import (
	"fmt"
	"strconv"
	"strings"
)

// Color 24-битный RGB цвет вокселя (0xRRGGBB)
type Color uint32

// MaxColor максимальное допустимое значение цвета
const MaxColor Color = 0xFFFFFF

// Valid проверяет, что цвет укладывается в 24 бита
func (c Color) Valid() bool {
	return c <= MaxColor
}

// RGB раскладывает цвет на компоненты
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// RGBA возвращает компоненты в диапазоне [0,1] с непрозрачной альфой
func (c Color) RGBA() [4]float32 {
	r, g, b := c.RGB()
	return [4]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255, 1}
}

// Hex возвращает цвет в виде "#RRGGBB"
func (c Color) Hex() string {
	return fmt.Sprintf("#%06X", uint32(c&MaxColor))
}

func (c Color) String() string {
	return c.Hex()
}

// ParseColor разбирает "#RRGGBB", "0xRRGGBB" или десятичное число
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "#"):
		v, err = strconv.ParseUint(s[1:], 16, 32)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 32)
	default:
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("неверный цвет %q: %w", s, err)
	}
	c := Color(v)
	if !c.Valid() {
		return 0, fmt.Errorf("цвет %q выходит за 24 бита", s)
	}
	return c, nil
}

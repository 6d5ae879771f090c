package editor

import (
	"fmt"
	"time"

	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/render"
	"github.com/annel0/voxel-editor/internal/world"
)

// Config параметры сессии редактора
type Config struct {
	GridSize int
	Buffer   render.Options
	Palette  world.Palette
	Camera   picking.Camera
	// FrameInterval период тика цикла сессии
	FrameInterval time.Duration
	// SelectionStep шаг выборки лучей при выделении области, в единицах NDC
	SelectionStep float64
	// InitialVoxel открывает сессию с одним вокселем в ячейке (0,0,0)
	// случайного цвета палитры
	InitialVoxel bool
}

// DefaultConfig возвращает настройки прототипа: сетка 20×20, 1000 инстансов, 60 Гц
func DefaultConfig() Config {
	return Config{
		GridSize:      20,
		Buffer:        render.Options{Capacity: render.DefaultCapacity},
		Palette:       append(world.Palette(nil), world.DefaultPalette...),
		Camera:        picking.DefaultCamera(),
		FrameInterval: time.Second / 60,
		SelectionStep: 0.02,
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.GridSize <= 0 {
		return fmt.Errorf("grid size must be positive, got %d", c.GridSize)
	}
	if err := c.Palette.Validate(); err != nil {
		return err
	}
	if err := ValidateCamera(c.Camera); err != nil {
		return err
	}
	if c.SelectionStep <= 0 || c.SelectionStep > 2 {
		return fmt.Errorf("selection step must be in (0, 2], got %g", c.SelectionStep)
	}
	return nil
}

// ValidateCamera проверяет параметры проекции камеры
func ValidateCamera(cam picking.Camera) error {
	switch {
	case cam.FovY <= 0 || cam.FovY >= 180:
		return fmt.Errorf("%w: fov %g", ErrInvalidCamera, cam.FovY)
	case cam.Aspect <= 0:
		return fmt.Errorf("%w: aspect %g", ErrInvalidCamera, cam.Aspect)
	case cam.Near <= 0 || cam.Far <= cam.Near:
		return fmt.Errorf("%w: near %g far %g", ErrInvalidCamera, cam.Near, cam.Far)
	case !cam.Position.IsFinite() || !cam.Target.IsFinite():
		return fmt.Errorf("%w: non-finite position", ErrInvalidCamera)
	case cam.Position == cam.Target:
		return fmt.Errorf("%w: position equals target", ErrInvalidCamera)
	}
	return nil
}

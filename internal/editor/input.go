package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/voxel-editor/internal/picking"
	"github.com/annel0/voxel-editor/internal/vec"
)

// Типы входных событий
const (
	InputPointer      = "pointer"
	InputPress        = "press"
	InputFocus        = "focus"
	InputKey          = "key"
	InputColor        = "color"
	InputCamera       = "camera"
	InputSelectBegin  = "select_begin"
	InputSelectEnd    = "select_end"
	InputSelectCancel = "select_cancel"
)

// ErrUnknownInput неизвестный тип события или кнопки
var ErrUnknownInput = errors.New("unknown input")

// Input одно входное событие редактора. Используемые поля зависят от Type.
// Для pointer с Width/Height > 0 координаты X/Y считаются пикселями окна.
type Input struct {
	Type    string          `json:"type"`
	X       float64         `json:"x,omitempty"`
	Y       float64         `json:"y,omitempty"`
	Width   float64         `json:"width,omitempty"`
	Height  float64         `json:"height,omitempty"`
	Button  string          `json:"button,omitempty"`
	Focused bool            `json:"focused,omitempty"`
	Key     string          `json:"key,omitempty"`
	Index   int             `json:"index,omitempty"`
	Camera  *picking.Camera `json:"camera,omitempty"`
}

// InputResult итог применения события
type InputResult struct {
	Placed    *vec.Vec3Float  `json:"placed,omitempty"`
	Removed   *vec.Vec3Float  `json:"removed,omitempty"`
	Recolored []vec.Vec3Float `json:"recolored,omitempty"`
	Handled   bool            `json:"handled"`
	View      StateView       `json:"state"`
}

// Apply применяет событие к сессии. Вызывается только из цикла сессии.
// Переполнение сцены возвращается как ErrCapacityExceeded пакета render.
func (s *Session) Apply(ctx context.Context, in Input) (InputResult, error) {
	res := InputResult{Handled: true}

	switch in.Type {
	case InputPointer:
		if in.Width > 0 && in.Height > 0 {
			s.PointerMovePixels(in.X, in.Y, in.Width, in.Height)
		} else {
			s.PointerMove(vec.Vec2Float{X: in.X, Y: in.Y})
		}

	case InputPress:
		button, ok := ParseButton(in.Button)
		if !ok {
			return res, fmt.Errorf("%w: button %q", ErrUnknownInput, in.Button)
		}
		if button == ButtonPrimary {
			cell, placed, err := s.PrimaryPress(ctx)
			if err != nil {
				return res, err
			}
			if placed {
				p := cell.Center()
				res.Placed = &p
			}
			res.Handled = placed
		} else {
			cell, removed := s.SecondaryPress(ctx)
			if removed {
				p := cell.Center()
				res.Removed = &p
			}
			res.Handled = removed
		}

	case InputFocus:
		s.SetFocus(in.Focused)

	case InputKey:
		res.Handled = s.KeyDown(in.Key)

	case InputColor:
		if err := s.SelectColor(in.Index); err != nil {
			return res, err
		}

	case InputCamera:
		if in.Camera == nil {
			return res, fmt.Errorf("%w: camera is required", ErrInvalidCamera)
		}
		if err := s.SetCamera(*in.Camera); err != nil {
			return res, err
		}

	case InputSelectBegin:
		s.BeginSelection()

	case InputSelectEnd:
		cells, err := s.EndSelection(ctx)
		if err != nil {
			return res, err
		}
		res.Recolored = centers(cells)
		res.Handled = len(cells) > 0

	case InputSelectCancel:
		s.CancelSelection()

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownInput, in.Type)
	}

	res.View = s.View()
	return res, nil
}

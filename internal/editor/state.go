package editor

// TargetState состояние резолвера размещения
type TargetState int

const (
	// NoTarget луч ни во что не попал
	NoTarget TargetState = iota
	// TargetOnPlane ближайшее попадание на плоскость земли
	TargetOnPlane
	// TargetOnVoxel ближайшее попадание в грань вокселя
	TargetOnVoxel
)

func (s TargetState) String() string {
	switch s {
	case NoTarget:
		return "NoTarget"
	case TargetOnPlane:
		return "TargetOnPlane"
	case TargetOnVoxel:
		return "TargetOnVoxel"
	default:
		return "Unknown"
	}
}

// Button кнопка указателя
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
)

// ParseButton разбирает имя кнопки ("primary", "secondary", "left", "right")
func ParseButton(s string) (Button, bool) {
	switch s {
	case "primary", "left", "0":
		return ButtonPrimary, true
	case "secondary", "right", "2":
		return ButtonSecondary, true
	default:
		return 0, false
	}
}

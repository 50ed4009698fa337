package facetrack

// Level is the coarse proximity of the dominant face.
type Level int

const (
	LevelNone  Level = iota // no face
	LevelNear               // face present, small
	LevelClose              // face present, large
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "NONE"
	case LevelNear:
		return "NEAR"
	case LevelClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// Color returns the overlay colour for the level as #rrggbb.
func (l Level) Color() string {
	switch l {
	case LevelNear:
		return "#ff0000"
	case LevelClose:
		return "#00ff00"
	default:
		return "#cccccc"
	}
}

// RGB returns the overlay colour components.
func (l Level) RGB() (r, g, b uint8) {
	switch l {
	case LevelNear:
		return 0xff, 0x00, 0x00
	case LevelClose:
		return 0x00, 0xff, 0x00
	default:
		return 0xcc, 0xcc, 0xcc
	}
}

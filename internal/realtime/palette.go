package realtime

import "math/rand/v2"

// Palette is the fixed set of presence colors. Two members of the same room
// may be given the same color.
var Palette = []string{
	"#e57373", "#f06292", "#ba68c8", "#9575cd",
	"#7986cb", "#64b5f6", "#4fc3f7", "#4dd0e1",
	"#4db6ac", "#81c784", "#aed581", "#ffb74d",
}

// ColorPicker chooses a presence color.
type ColorPicker func() string

// RandomColor picks uniformly from Palette.
func RandomColor() string {
	return Palette[rand.IntN(len(Palette))]
}

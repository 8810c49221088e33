package palette

import (
	"math"
	"sort"
)

var paletteLevels = []float64{0, 0.5, 1.0}

// Default is the reference palette used for histogram buckets. It is built
// once and must not be modified.
var Default = Build()

type Color [3]float64

type Palette []Color

// Build returns every combination of the palette levels over the three color
// channels, sorted by channel tuple so that bucket indices are stable.
func Build() Palette {
	colors := make(Palette, 0, len(paletteLevels)*len(paletteLevels)*len(paletteLevels))
	for _, r := range paletteLevels {
		for _, g := range paletteLevels {
			for _, b := range paletteLevels {
				colors = append(colors, Color{r, g, b})
			}
		}
	}

	sort.Slice(colors, func(i, j int) bool {
		return colors[i].less(colors[j])
	})

	return colors
}

// Closest returns the index of the palette entry nearest to c. Ties resolve
// to the lowest index.
func (p Palette) Closest(c Color) int {
	best := -1
	bestDistance := math.Inf(1)
	for index, entry := range p {
		distance := colorDistance(c, entry)
		if distance < bestDistance {
			best = index
			bestDistance = distance
		}
	}

	return best
}

func (c Color) less(other Color) bool {
	for channel := range c {
		if c[channel] != other[channel] {
			return c[channel] < other[channel]
		}
	}

	return false
}

func colorDistance(a Color, b Color) float64 {
	dr := a[0] - b[0]
	dg := a[1] - b[1]
	db := a[2] - b[2]
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

package analyzer

import (
	"image"
	"math"
)

// darkLevel is the gray level below which a pixel reads as ink
const darkLevel = 128

// markerDetector finds QR-style finder patterns, the concentric squares
// printed on wound measuring cards and calibration targets. A row scan looks
// for dark/light runs in a 1:1:3:1:1 ratio and a column scan through the
// candidate center confirms it.
type markerDetector struct{}

// NewMarkerDetector creates a new calibration marker detector
func NewMarkerDetector() MarkerDetector {
	return &markerDetector{}
}

// DetectMarker reports whether the image contains at least one finder pattern
func (md *markerDetector) DetectMarker(gray *image.Gray) bool {
	bounds := gray.Bounds()
	if bounds.Dx() < 7 || bounds.Dy() < 7 {
		return false
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		runs := md.rowRuns(gray, y)
		for i := 0; i+4 < len(runs); i++ {
			if !runs[i].dark {
				continue
			}
			candidate := [5]int{runs[i].length, runs[i+1].length, runs[i+2].length, runs[i+3].length, runs[i+4].length}
			if !hasFinderRatio(candidate) {
				continue
			}
			centerX := runs[i+2].start + runs[i+2].length/2
			if md.crossCheckVertical(gray, centerX, y, candidate) {
				return true
			}
		}
	}
	return false
}

type run struct {
	dark   bool
	start  int
	length int
}

// rowRuns splits a row into alternating dark and light runs
func (md *markerDetector) rowRuns(gray *image.Gray, y int) []run {
	bounds := gray.Bounds()
	var runs []run
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		dark := gray.GrayAt(x, y).Y < darkLevel
		if n := len(runs); n > 0 && runs[n-1].dark == dark {
			runs[n-1].length++
			continue
		}
		runs = append(runs, run{dark: dark, start: x, length: 1})
	}
	return runs
}

// crossCheckVertical walks up and down from a candidate center and checks the
// column shows the same pattern at a comparable size
func (md *markerDetector) crossCheckVertical(gray *image.Gray, x, y int, horizontal [5]int) bool {
	bounds := gray.Bounds()
	isDark := func(yy int) bool { return gray.GrayAt(x, yy).Y < darkLevel }

	var counts [5]int

	// upward: center dark, light ring, outer dark
	yy := y
	for ; yy >= bounds.Min.Y && isDark(yy); yy-- {
		counts[2]++
	}
	for ; yy >= bounds.Min.Y && !isDark(yy); yy-- {
		counts[1]++
	}
	for ; yy >= bounds.Min.Y && isDark(yy); yy-- {
		counts[0]++
	}

	// downward
	yy = y + 1
	for ; yy < bounds.Max.Y && isDark(yy); yy++ {
		counts[2]++
	}
	for ; yy < bounds.Max.Y && !isDark(yy); yy++ {
		counts[3]++
	}
	for ; yy < bounds.Max.Y && isDark(yy); yy++ {
		counts[4]++
	}

	if !hasFinderRatio(counts) {
		return false
	}

	vertical := sumRuns(counts)
	total := sumRuns(horizontal)
	return math.Abs(float64(vertical-total)) < float64(total)/2
}

// hasFinderRatio checks runs against 1:1:3:1:1 within half a module
func hasFinderRatio(runs [5]int) bool {
	total := sumRuns(runs)
	if total < 7 {
		return false
	}
	for _, r := range runs {
		if r == 0 {
			return false
		}
	}

	module := float64(total) / 7
	variance := module / 2
	return math.Abs(module-float64(runs[0])) < variance &&
		math.Abs(module-float64(runs[1])) < variance &&
		math.Abs(3*module-float64(runs[2])) < 3*variance &&
		math.Abs(module-float64(runs[3])) < variance &&
		math.Abs(module-float64(runs[4])) < variance
}

func sumRuns(runs [5]int) int {
	total := 0
	for _, r := range runs {
		total += r
	}
	return total
}

package analyzer

import (
	"image"
	"image/color"
	"testing"
)

// drawFinderPattern draws a 7x7-module finder pattern with its top-left corner at (x0, y0)
func drawFinderPattern(gray *image.Gray, x0, y0, module int) {
	for j := 0; j < 7; j++ {
		for i := 0; i < 7; i++ {
			ring := i == 0 || i == 6 || j == 0 || j == 6
			core := i >= 2 && i <= 4 && j >= 2 && j <= 4
			if !ring && !core {
				continue
			}
			for dy := 0; dy < module; dy++ {
				for dx := 0; dx < module; dx++ {
					gray.SetGray(x0+i*module+dx, y0+j*module+dy, color.Gray{0})
				}
			}
		}
	}
}

func TestNewMarkerDetector(t *testing.T) {
	detector := NewMarkerDetector()
	if detector == nil {
		t.Fatal("Expected non-nil marker detector")
	}
}

func TestDetectMarker_FinderPattern(t *testing.T) {
	detector := NewMarkerDetector()

	testCases := []struct {
		name   string
		x0, y0 int
		module int
	}{
		{"corner", 10, 10, 4},
		{"center", 60, 50, 5},
		{"small modules", 120, 120, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gray := createGrayImage(200, 200, 255)
			drawFinderPattern(gray, tc.x0, tc.y0, tc.module)
			if !detector.DetectMarker(gray) {
				t.Error("Expected finder pattern to be detected")
			}
		})
	}
}

func TestDetectMarker_NoPattern(t *testing.T) {
	detector := NewMarkerDetector()

	if detector.DetectMarker(createGrayImage(200, 200, 255)) {
		t.Error("Expected no marker in uniform white image")
	}

	checker := createGrayImage(100, 100, 255)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if (x/10+y/10)%2 == 0 {
				checker.SetGray(x, y, color.Gray{0})
			}
		}
	}
	if detector.DetectMarker(checker) {
		t.Error("Expected checkerboard not to read as a finder pattern")
	}
}

func TestDetectMarker_SmallImage(t *testing.T) {
	detector := NewMarkerDetector()

	if detector.DetectMarker(createGrayImage(5, 5, 0)) {
		t.Error("Expected no marker in a tiny image")
	}
}

func TestHasFinderRatio(t *testing.T) {
	testCases := []struct {
		name     string
		runs     [5]int
		expected bool
	}{
		{"exact", [5]int{4, 4, 12, 4, 4}, true},
		{"slightly off", [5]int{3, 4, 11, 5, 4}, true},
		{"equal runs", [5]int{10, 10, 10, 10, 10}, false},
		{"missing run", [5]int{4, 0, 12, 4, 4}, false},
		{"too small", [5]int{1, 1, 1, 1, 1}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasFinderRatio(tc.runs); got != tc.expected {
				t.Errorf("hasFinderRatio(%v) = %v, want %v", tc.runs, got, tc.expected)
			}
		})
	}
}

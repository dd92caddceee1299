package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// subjectDelta is the gray-level distance from the background at which a
// pixel counts as part of the subject
const subjectDelta = 30

// metricsCalculator implements MetricsCalculator with Gonum statistics
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// CalculateColorStats computes channel means in horizontal strips processed in parallel
func (mc *metricsCalculator) CalculateColorStats(img image.Image) colorStats {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return colorStats{}
	}

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	type stripResult struct {
		lum, r, g, b float64
		pixelCount   int
	}

	results := make(chan stripResult, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		startY := bounds.Min.Y + i*rowsPerWorker
		endY := startY + rowsPerWorker
		if i == numWorkers-1 || endY > bounds.Max.Y {
			endY = bounds.Max.Y
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()

			var res stripResult
			for y := startY; y < endY; y++ {
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					rVal, gVal, bVal, _ := img.At(x, y).RGBA()
					rf := float64(rVal) / 65535.0
					gf := float64(gVal) / 65535.0
					bf := float64(bVal) / 65535.0

					res.lum += 0.299*rf + 0.587*gf + 0.114*bf
					res.r += rf
					res.g += gf
					res.b += bf
					res.pixelCount++
				}
			}
			results <- res
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total stripResult
	for res := range results {
		total.lum += res.lum
		total.r += res.r
		total.g += res.g
		total.b += res.b
		total.pixelCount += res.pixelCount
	}
	if total.pixelCount == 0 {
		return colorStats{}
	}

	n := float64(total.pixelCount)
	return colorStats{
		avgLuminance: total.lum / n,
		avgR:         total.r / n,
		avgG:         total.g / n,
		avgB:         total.b / n,
	}
}

// CalculateLaplacianVariance computes the variance of the 4-neighbour Laplacian
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()
	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)
			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// CalculateBrightness computes mean gray level normalized to [0,1]
func (mc *metricsCalculator) CalculateBrightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	var total float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			total += float64(gray.GrayAt(x, y).Y)
		}
	}
	return total / float64(width*height) / 255.0
}

// EstimateNoise returns the Gaussian noise sigma in gray levels using
// Immerkær's fast estimator
func (mc *metricsCalculator) EstimateNoise(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	// Kernel: [1, -2, 1; -2, 4, -2; 1, -2, 1]
	var sum float64
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			v := float64(gray.GrayAt(x-1, y-1).Y) - 2*float64(gray.GrayAt(x, y-1).Y) + float64(gray.GrayAt(x+1, y-1).Y) -
				2*float64(gray.GrayAt(x-1, y).Y) + 4*float64(gray.GrayAt(x, y).Y) - 2*float64(gray.GrayAt(x+1, y).Y) +
				float64(gray.GrayAt(x-1, y+1).Y) - 2*float64(gray.GrayAt(x, y+1).Y) + float64(gray.GrayAt(x+1, y+1).Y)
			sum += math.Abs(v)
		}
	}

	return sum * math.Sqrt(math.Pi/2) / (6 * float64(width-2) * float64(height-2))
}

// CalculateSubjectRegion treats the frame border as background and measures
// the pixels that stand out from it
func (mc *metricsCalculator) CalculateSubjectRegion(gray *image.Gray) subjectRegion {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return subjectRegion{}
	}

	border := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(border[:0]) }()
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		border = append(border, float64(gray.GrayAt(x, bounds.Min.Y).Y), float64(gray.GrayAt(x, bounds.Max.Y-1).Y))
	}
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		border = append(border, float64(gray.GrayAt(bounds.Min.X, y).Y), float64(gray.GrayAt(bounds.Max.X-1, y).Y))
	}
	background := stat.Mean(border, nil)

	var region subjectRegion
	var sumX, sumY float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if math.Abs(float64(gray.GrayAt(x, y).Y)-background) > subjectDelta {
				region.pixels++
				sumX += float64(x - bounds.Min.X)
				sumY += float64(y - bounds.Min.Y)
			}
		}
	}
	if region.pixels == 0 {
		return region
	}

	region.coverage = float64(region.pixels) / float64(width*height)
	region.centroidX = sumX / float64(region.pixels)
	region.centroidY = sumY / float64(region.pixels)
	return region
}

// CalculateGradientEnergy sums absolute Sobel responses per axis
func (mc *metricsCalculator) CalculateGradientEnergy(gray *image.Gray) (gx, gy float64) {
	bounds := gray.Bounds()
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			gx += math.Abs(float64(mc.sobelX(gray, x, y)))
			gy += math.Abs(float64(mc.sobelY(gray, x, y)))
		}
	}
	return gx, gy
}

func (mc *metricsCalculator) sobelX(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) + 1*int(gray.GrayAt(x+1, y-1).Y) +
		-2*int(gray.GrayAt(x-1, y).Y) + 2*int(gray.GrayAt(x+1, y).Y) +
		-1*int(gray.GrayAt(x-1, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}

func (mc *metricsCalculator) sobelY(gray *image.Gray, x, y int) int {
	return -1*int(gray.GrayAt(x-1, y-1).Y) - 2*int(gray.GrayAt(x, y-1).Y) - 1*int(gray.GrayAt(x+1, y-1).Y) +
		1*int(gray.GrayAt(x-1, y+1).Y) + 2*int(gray.GrayAt(x, y+1).Y) + 1*int(gray.GrayAt(x+1, y+1).Y)
}

package analyzer

import (
	"image"
	"runtime"
	"sync"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"
)

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

// Downsample scales img so that neither edge exceeds maxDim, keeping the aspect ratio.
// Images already inside the bound are copied into an RGBA buffer unchanged.
func (mc *metricsCalculator) Downsample(img image.Image, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	dw, dh := w, h
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			dw = maxDim
			dh = max(1, h*maxDim/w)
		} else {
			dh = maxDim
			dw = max(1, w*maxDim/h)
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	if dw == w && dh == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// LuminanceSamples returns 0.299R+0.587G+0.114B per pixel on the 0-255 scale.
// Rows are processed in parallel strips.
func (mc *metricsCalculator) LuminanceSamples(img *image.RGBA) []float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	samples := make([]float64, width*height)

	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := min(startY+rowsPerWorker, height)
		if startY >= endY {
			break
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				row := img.Pix[y*img.Stride : y*img.Stride+width*4]
				for x := 0; x < width; x++ {
					r := float64(row[x*4])
					g := float64(row[x*4+1])
					b := float64(row[x*4+2])
					samples[y*width+x] = 0.299*r + 0.587*g + 0.114*b
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return samples
}

// LuminanceStats returns the mean and population standard deviation of the samples
func (mc *metricsCalculator) LuminanceStats(samples []float64) (mean, stdDev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	mean = stat.Mean(samples, nil)
	// stat.StdDev is the sample estimator; contrast is defined over the whole buffer
	stdDev = stat.PopStdDev(samples, nil)
	return mean, stdDev
}

// CalculateLaplacianVariance computes Laplacian variance using Gonum operations
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)[:0]
	defer func() {
		mc.slicePool.Put(data[:0])
	}()

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			idx := y*gray.Stride + x
			center := float64(gray.Pix[idx])
			top := float64(gray.Pix[idx-gray.Stride])
			bottom := float64(gray.Pix[idx+gray.Stride])
			left := float64(gray.Pix[idx-1])
			right := float64(gray.Pix[idx+1])
			data = append(data, top+bottom+left+right-4*center)
		}
	}

	return stat.Variance(data, nil)
}

// toGray converts a downsampled buffer into a luminance image
func toGray(img *image.RGBA) *image.Gray {
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray
}

// Package fingerprint computes perceptual hashes of face crops so that
// sample collection can skip frames that add nothing new to the training set.
package fingerprint

import (
	"image"
	"math"
	"math/bits"
	"slices"

	"golang.org/x/image/draw"
)

// Hash is a pair of 64-bit perceptual hashes of one image.
type Hash struct {
	PHash uint64 // DCT based
	DHash uint64 // gradient based
}

// Compute hashes img.
func Compute(img image.Image) Hash {
	return Hash{PHash: computePHash(img), DHash: computeDHash(img)}
}

// Distance is the larger of the two Hamming distances. Both hashes must agree
// for two crops to count as near-duplicates.
func (h Hash) Distance(other Hash) int {
	return max(HammingDistance(h.PHash, other.PHash), HammingDistance(h.DHash, other.DHash))
}

// HammingDistance counts differing bits.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Set remembers hashes of accepted images.
type Set struct {
	minDistance int
	hashes      []Hash
}

// NewSet returns a set that treats hashes closer than minDistance as duplicates.
// A minDistance of zero accepts everything.
func NewSet(minDistance int) *Set {
	return &Set{minDistance: minDistance}
}

// Add records the hash of img unless a near-duplicate was added before. It
// reports whether img was accepted.
func (s *Set) Add(img image.Image) bool {
	if s.minDistance <= 0 {
		return true
	}
	h := Compute(img)
	for _, prev := range s.hashes {
		if h.Distance(prev) < s.minDistance {
			return false
		}
	}
	s.hashes = append(s.hashes, h)
	return true
}

// Len is the number of accepted hashes.
func (s *Set) Len() int {
	return len(s.hashes)
}

func computePHash(img image.Image) uint64 {
	gray := toGrayscale(resizeImage(img, 32, 32))
	dct := computeDCT(gray)

	// top-left 8x8 block minus the DC term, padded from the next row
	lowFreq := make([]float64, 0, 64)
	for u := range 8 {
		for v := range 8 {
			if u == 0 && v == 0 {
				continue
			}
			lowFreq = append(lowFreq, dct[u][v])
		}
	}
	lowFreq = append(lowFreq, dct[8][0])

	median := computeMedian(lowFreq)
	var hash uint64
	for i, v := range lowFreq {
		if v > median {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

func computeDHash(img image.Image) uint64 {
	gray := toGrayscale(resizeImage(img, 9, 8))

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale returns BT.601 luma indexed [x][y].
func toGrayscale(img *image.RGBA) [][]float64 {
	b := img.Bounds()
	gray := make([][]float64, b.Dx())
	for x := range b.Dx() {
		gray[x] = make([]float64, b.Dy())
		for y := range b.Dy() {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return gray
}

// computeDCT is a straightforward DCT-II of a square matrix.
func computeDCT(gray [][]float64) [][]float64 {
	size := len(gray)
	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	dct := make([][]float64, size)
	for u := range size {
		dct[u] = make([]float64, size)
		for v := range size {
			var sum float64
			for x := range size {
				for y := range size {
					sum += gray[x][y] * cosTable[u][x] * cosTable[v][y]
				}
			}
			dct[u][v] = sum
		}
	}
	return dct
}

func computeMedian(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

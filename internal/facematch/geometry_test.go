package facematch

import (
	"image"
	"math"
	"slices"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     image.Rectangle
		expected float64
	}{
		{
			name:     "identical boxes",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(0, 0, 10, 10),
			expected: 1.0,
		},
		{
			name:     "no overlap",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(20, 20, 30, 30),
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(5, 5, 15, 15),
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			a:        image.Rect(0, 0, 20, 20),
			b:        image.Rect(5, 5, 15, 15),
			expected: 100.0 / 400.0,
		},
		{
			name:     "empty rectangles",
			a:        image.Rectangle{},
			b:        image.Rectangle{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestDedupeRects(t *testing.T) {
	rects := []image.Rectangle{
		image.Rect(0, 0, 100, 100),
		image.Rect(300, 300, 380, 380),
		image.Rect(2, 2, 102, 102), // same face as the first
	}

	got := DedupeRects(rects, 0.5)
	if !slices.Equal(got, []int{0, 1}) {
		t.Errorf("DedupeRects() = %v, want [0 1]", got)
	}

	if got := DedupeRects(nil, 0.5); len(got) != 0 {
		t.Errorf("DedupeRects(nil) = %v, want empty", got)
	}
}

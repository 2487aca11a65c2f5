package facematch

import (
	"image"
	"slices"
)

// ComputeIoU calculates Intersection over Union between two rectangles.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// DedupeRects drops rectangles that overlap an earlier, larger rectangle by
// more than threshold IoU. Detectors occasionally report the same face twice
// at neighbouring scales, which must not count as two faces.
func DedupeRects(rects []image.Rectangle, threshold float64) []int {
	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	area := func(r image.Rectangle) int { return r.Dx() * r.Dy() }
	slices.SortStableFunc(order, func(a, b int) int { return area(rects[b]) - area(rects[a]) })

	var kept []int
	for _, i := range order {
		dup := false
		for _, k := range kept {
			if ComputeIoU(rects[i], rects[k]) > threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, i)
		}
	}
	slices.Sort(kept)
	return kept
}

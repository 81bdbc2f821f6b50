package pipeline

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const defaultMaxIterations = 300

// kmeans partitions the planar points into at most k clusters with k-means++
// seeding and Lloyd iterations. The same seed always yields the same labels.
//
// k is clamped to the number of distinct points. A cluster that empties is
// re-seeded with the point farthest from its current centroid. Distance ties
// go to the lowest cluster index.
func kmeans(xs, ys []float64, k int, seed uint64, maxIter int) []int {
	n := len(xs)
	labels := make([]int, n)
	if n == 0 {
		return labels
	}
	if d := distinctPoints(xs, ys); k > d {
		k = d
	}
	if k <= 1 {
		return labels
	}
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	cx, cy := seedCenters(xs, ys, k, rng)

	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		changed := assign(xs, ys, cx, cy, labels)
		reseeded := updateCenters(xs, ys, cx, cy, labels)
		if !changed && !reseeded {
			break
		}
	}
	return labels
}

// seedCenters picks k initial centers with k-means++: each new center is
// drawn with probability proportional to its squared distance from the
// nearest existing center.
func seedCenters(xs, ys []float64, k int, rng *rand.Rand) ([]float64, []float64) {
	n := len(xs)
	cx := make([]float64, 0, k)
	cy := make([]float64, 0, k)

	first := rng.IntN(n)
	cx = append(cx, xs[first])
	cy = append(cy, ys[first])

	d2 := make([]float64, n)
	for i := range d2 {
		d2[i] = sqDist(xs[i], ys[i], cx[0], cy[0])
	}

	for len(cx) < k {
		total := floats.Sum(d2)
		if total == 0 {
			break
		}

		target := rng.Float64() * total
		pick := -1
		var acc float64
		for i, d := range d2 {
			if d == 0 {
				continue
			}
			pick = i
			acc += d
			if acc >= target {
				break
			}
		}

		cx = append(cx, xs[pick])
		cy = append(cy, ys[pick])
		for i := range d2 {
			if d := sqDist(xs[i], ys[i], xs[pick], ys[pick]); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return cx, cy
}

// assign moves every point to its nearest center and reports whether any
// label changed.
func assign(xs, ys, cx, cy []float64, labels []int) bool {
	changed := false
	for i := range xs {
		best, bestD := 0, math.Inf(1)
		for c := range cx {
			if d := sqDist(xs[i], ys[i], cx[c], cy[c]); d < bestD {
				best, bestD = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// updateCenters recomputes each center as the mean of its members. Empty
// clusters take the point farthest from its own center; that point is
// relabelled so the next assignment starts from a non-empty cluster.
func updateCenters(xs, ys, cx, cy []float64, labels []int) bool {
	k := len(cx)
	members := make([][]int, k)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}

	for c := range k {
		if len(members[c]) == 0 {
			continue
		}
		mx := make([]float64, len(members[c]))
		my := make([]float64, len(members[c]))
		for j, i := range members[c] {
			mx[j], my[j] = xs[i], ys[i]
		}
		cx[c], cy[c] = stat.Mean(mx, nil), stat.Mean(my, nil)
	}

	reseeded := false
	for c := range k {
		if len(members[c]) > 0 {
			continue
		}
		far, farD := -1, -1.0
		for i, l := range labels {
			if len(members[l]) < 2 {
				continue
			}
			if d := sqDist(xs[i], ys[i], cx[l], cy[l]); d > farD {
				far, farD = i, d
			}
		}
		if far < 0 {
			continue
		}
		old := labels[far]
		members[old] = removeMember(members[old], far)
		members[c] = []int{far}
		labels[far] = c
		cx[c], cy[c] = xs[far], ys[far]
		reseeded = true
	}
	return reseeded
}

func removeMember(ids []int, id int) []int {
	for j, v := range ids {
		if v == id {
			return append(ids[:j], ids[j+1:]...)
		}
	}
	return ids
}

func distinctPoints(xs, ys []float64) int {
	seen := make(map[[2]float64]struct{}, len(xs))
	for i := range xs {
		seen[[2]float64{xs[i], ys[i]}] = struct{}{}
	}
	return len(seen)
}

func sqDist(ax, ay, bx, by float64) float64 {
	dx, dy := ax-bx, ay-by
	return dx*dx + dy*dy
}

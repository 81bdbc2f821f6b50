package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/vivaro/vivaro/internal/spatial"
)

const (
	unvisited = -1
	noise     = -2
)

// dbscan labels planar points by density reachability. A core point has at
// least minSamples neighbours within eps, counting itself. Noise points are
// returned as singleton clusters so every point is assigned.
func dbscan(xs, ys []float64, eps float64, minSamples int) ([]int, error) {
	idx, err := spatial.NewPlanarIndex(xs, ys)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: dbscan index")
	}

	labels := make([]int, len(xs))
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for i := range xs {
		if labels[i] != unvisited {
			continue
		}
		neighbours := idx.Within(xs[i], ys[i], eps)
		if len(neighbours) < minSamples {
			labels[i] = noise
			continue
		}

		cluster := next
		next++
		labels[i] = cluster

		queue := append([]int(nil), neighbours...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster

			if nb := idx.Within(xs[j], ys[j], eps); len(nb) >= minSamples {
				queue = append(queue, nb...)
			}
		}
	}

	for i, l := range labels {
		if l == noise {
			labels[i] = next
			next++
		}
	}
	return labels, nil
}

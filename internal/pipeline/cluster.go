package pipeline

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/vivaro/vivaro/internal/config"
	"github.com/vivaro/vivaro/internal/geo"
	"github.com/vivaro/vivaro/internal/model"
)

// Clustering methods.
const (
	MethodKMeans = "kmeans"
	MethodDBSCAN = "dbscan"
)

// ClusterRecords groups the communities of the given records into candidate
// site clusters. Every community with a location lands in exactly one
// cluster. Cluster IDs follow the order in which clusters first appear in
// records.
func ClusterRecords(records []model.UnderservedRecord, cfg config.ClusterConfig) (*model.Clustering, error) {
	var (
		names  []string
		points []model.GeoPoint
	)
	for _, r := range records {
		if r.Community == nil || r.Community.Location == nil {
			continue
		}
		names = append(names, r.Community.Name)
		points = append(points, *r.Community.Location)
	}
	if len(points) == 0 {
		return model.NewClustering(nil), nil
	}

	proj, err := geo.NewProjector(cfg.Projection, points)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: cluster projection")
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = proj.Forward(p)
	}

	var labels []int
	switch cfg.Method {
	case "", MethodKMeans:
		k := cfg.K
		if k <= 0 {
			k = 10
		}
		labels = kmeans(xs, ys, k, cfg.Seed, cfg.MaxIterations)
	case MethodDBSCAN:
		if cfg.EpsKM <= 0 || cfg.MinSamples < 1 {
			return nil, eris.Errorf("pipeline: dbscan requires eps_km > 0 and min_samples >= 1, got %v and %d", cfg.EpsKM, cfg.MinSamples)
		}
		labels, err = dbscan(xs, ys, cfg.EpsKM*1000, cfg.MinSamples)
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("pipeline: unknown cluster method %q", cfg.Method)
	}

	return buildClustering(names, xs, ys, labels, proj), nil
}

// buildClustering renumbers labels by first appearance and computes each
// centroid as the planar mean of its members.
func buildClustering(names []string, xs, ys []float64, labels []int, proj geo.Projector) *model.Clustering {
	renumber := make(map[int]int)
	var members [][]int
	for i, l := range labels {
		id, ok := renumber[l]
		if !ok {
			id = len(members)
			renumber[l] = id
			members = append(members, nil)
		}
		members[id] = append(members[id], i)
	}

	clusters := make([]model.Cluster, len(members))
	for id, idxs := range members {
		mx := make([]float64, len(idxs))
		my := make([]float64, len(idxs))
		memberNames := make([]string, len(idxs))
		for j, i := range idxs {
			mx[j], my[j] = xs[i], ys[i]
			memberNames[j] = names[i]
		}
		cx, cy := stat.Mean(mx, nil), stat.Mean(my, nil)
		clusters[id] = model.Cluster{
			ID:         id,
			Members:    memberNames,
			Centroid:   proj.Inverse(cx, cy),
			ProjectedX: cx,
			ProjectedY: cy,
		}
	}
	return model.NewClustering(clusters)
}

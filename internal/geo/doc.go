// Package geo provides the geodesic helpers used by the analysis pipeline:
// great-circle distance, boundary area, point-in-polygon tests and the planar
// projections used for clustering.
package geo

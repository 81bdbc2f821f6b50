package geo

import (
	"math"

	"github.com/vivaro/vivaro/internal/model"
)

// EarthRadiusKM is the mean earth radius used for every great-circle distance.
const EarthRadiusKM = 6371.0

const degToRad = math.Pi / 180

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * degToRad
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad / degToRad
}

// HaversineAngle returns the central angle in radians between two points
// given in radians.
func HaversineAngle(lat1, lon1, lat2, lon2 float64) float64 {
	sLat := math.Sin((lat2 - lat1) / 2)
	sLon := math.Sin((lon2 - lon1) / 2)
	a := sLat*sLat + math.Cos(lat1)*math.Cos(lat2)*sLon*sLon
	if a > 1 {
		a = 1
	}
	return 2 * math.Asin(math.Sqrt(a))
}

// HaversineKM returns the great-circle distance in kilometers between two
// points.
func HaversineKM(a, b model.GeoPoint) float64 {
	return EarthRadiusKM * HaversineAngle(Radians(a.Lat), Radians(a.Lon), Radians(b.Lat), Radians(b.Lon))
}

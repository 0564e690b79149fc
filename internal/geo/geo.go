// Package geo holds the small amount of spherical geometry the service needs.
package geo

import (
	"math"

	"example.com/eventwave/internal/models"
)

const (
	earthRadiusKm = 6371.0088
	kmPerDegree   = 111.0
)

// BoundingBox is an inclusive latitude/longitude rectangle
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether loc lies inside the box, edges included
func (b BoundingBox) Contains(loc models.Location) bool {
	return loc.Latitude >= b.MinLat && loc.Latitude <= b.MaxLat &&
		loc.Longitude >= b.MinLon && loc.Longitude <= b.MaxLon
}

// PointBox is the degenerate box containing exactly one point
func PointBox(loc models.Location) BoundingBox {
	return BoundingBox{
		MinLat: loc.Latitude,
		MaxLat: loc.Latitude,
		MinLon: loc.Longitude,
		MaxLon: loc.Longitude,
	}
}

// BoundingBoxAround returns a planar box approximating a circle of radiusKm.
// Longitude is widened by 1/cos(lat). Only a coarse pre-filter: refine with DistanceKm.
func BoundingBoxAround(center models.Location, radiusKm float64) BoundingBox {
	dLat := radiusKm / kmPerDegree
	dLon := dLat
	if c := math.Cos(toRadians(center.Latitude)); c > 1e-9 {
		dLon = dLat / c
	} else {
		dLon = 180
	}
	return BoundingBox{
		MinLat: center.Latitude - dLat,
		MaxLat: center.Latitude + dLat,
		MinLon: center.Longitude - dLon,
		MaxLon: center.Longitude + dLon,
	}
}

// DistanceKm is the haversine great-circle distance between two points
func DistanceKm(a, b models.Location) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

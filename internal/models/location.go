package models

import "time"

// Location is a WGS84 coordinate in degrees
type Location struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// Fix is a location observed by a provider at a given time
type Fix struct {
	Location
	Provider string    `json:"provider"`
	Time     time.Time `json:"time"`
}

// NewerThan reports whether f was observed after other. Any fix is newer than nil.
func (f *Fix) NewerThan(other *Fix) bool {
	if f == nil {
		return false
	}
	if other == nil {
		return true
	}
	return f.Time.After(other.Time)
}

package domain

import "math"

// DecideGPS returns the coordinate that may be written, or nil.
// Existing GPS is never replaced, regardless of overwrite settings.
func DecideGPS(existingHasGPS bool, candidate *Coordinate) *Coordinate {
	if existingHasGPS || candidate == nil {
		return nil
	}
	if !ValidCoordinate(*candidate) {
		return nil
	}
	c := *candidate
	return &c
}

// ValidCoordinate rejects out-of-range values, NaN and the (0,0) placeholder.
func ValidCoordinate(c Coordinate) bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return false
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return false
	}
	return !(c.Latitude == 0 && c.Longitude == 0)
}

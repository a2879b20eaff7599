package stateengine

// directionIsNorth maps a course to a canal direction: COG in the band
// [315,360] ∪ [0,45] means northbound, otherwise southbound. When COG is
// absent, fall back to the sign of the latitude delta between successive
// positions.
func directionIsNorth(cog float64, hasCOG bool, latDelta float64) bool {
	if hasCOG {
		return cog >= 315 || cog <= 45
	}
	return latDelta > 0
}

package engine

// Crossed reports whether target lies on or inside the closed interval
// formed by the previous and current samples, in either direction. A nil
// previous means this is the alert's first observation, which never
// triggers; the caller still records current as the next previous.
//
// The predicate is inclusive on both endpoints, so the degenerate
// zero-movement case previous == current == target triggers. That is
// intended: the price is sitting exactly on the target.
func Crossed(target float64, previous *float64, current float64) bool {
	if previous == nil {
		return false
	}
	return (target >= *previous && target <= current) ||
		(target <= *previous && target >= current)
}

// Rising reports whether a target is above the current price, i.e. the
// price has to rise to reach it. Alerts store no direction; it is inferred
// from the price at hand and used only for notification copy.
func Rising(target, current float64) bool {
	return target > current
}

package monitor

import "flight-price-checker/internal/models"

// Admits reports whether a listing satisfies the time filter. Both legs
// must pass.
func Admits(l models.Listing, f models.TimeFilter) bool {
	switch f.Kind {
	case models.FilterWindows:
		return inWindows(l.Departure, f.Outbound.Windows) &&
			inWindows(l.Return, f.Return.Windows)
	case models.FilterCutoff:
		// inclusive on both legs: outbound departs at or before the cutoff,
		// return departs at or after it
		if h := f.Outbound.CutoffHour; h != nil && l.Departure > models.NewClock(*h, 0) {
			return false
		}
		if h := f.Return.CutoffHour; h != nil && l.Return < models.NewClock(*h, 0) {
			return false
		}
		return true
	default:
		return true
	}
}

// AdmitAll keeps the admitted listings in their original order.
func AdmitAll(listings []models.Listing, f models.TimeFilter) []models.Listing {
	admitted := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if Admits(l, f) {
			admitted = append(admitted, l)
		}
	}
	return admitted
}

func inWindows(c models.Clock, windows []models.Window) bool {
	if len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if w.Contains(c) {
			return true
		}
	}
	return false
}
